package model

import (
	"fmt"
	"time"

	"github.com/quekou/quekou/pkg/errors"
)

const minutesPerDay = 24 * 60

// SlotModel 时段模型：将一天离散化为等长时段
//
// 所有时段数↔小时数的换算必须经由本类型完成，
// 避免不同模块对时段长度的理解不一致。
type SlotModel struct {
	durationMinutes int
	slotsPerDay     int
}

// NewSlotModel 创建时段模型
//
// 时段长度必须能整除24小时，否则返回配置错误。
func NewSlotModel(durationMinutes int) (*SlotModel, error) {
	if durationMinutes <= 0 {
		return nil, errors.ConfigError("slot_duration_minutes", "必须为正整数")
	}
	if minutesPerDay%durationMinutes != 0 {
		return nil, errors.ConfigError("slot_duration_minutes",
			fmt.Sprintf("%d 分钟无法整除24小时", durationMinutes))
	}
	return &SlotModel{
		durationMinutes: durationMinutes,
		slotsPerDay:     minutesPerDay / durationMinutes,
	}, nil
}

// SlotOf 返回时间点所属的日期和时段索引
func (sm *SlotModel) SlotOf(t time.Time) (date string, slot int) {
	date = t.Format(DateFormat)
	slot = (t.Hour()*60 + t.Minute()) / sm.durationMinutes
	return date, slot
}

// SlotHours 返回单个时段对应的小时数
func (sm *SlotModel) SlotHours() float64 {
	return float64(sm.durationMinutes) / 60.0
}

// SlotsPerDay 返回每天的时段数
func (sm *SlotModel) SlotsPerDay() int {
	return sm.slotsPerDay
}

// DurationMinutes 返回时段长度（分钟）
func (sm *SlotModel) DurationMinutes() int {
	return sm.durationMinutes
}
