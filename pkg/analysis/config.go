// Package analysis 实现人员缺口分析引擎
//
// 流水线：考勤记录 → 热力图 → 需求基准 → 缺口计算 → 校验封顶 → 维度对账。
// 每次运行独立持有全部中间数据，运行之间没有共享可变状态。
package analysis

import (
	"fmt"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/model"
)

// StatisticMethod 需求基准统计方法
type StatisticMethod string

const (
	StatisticMean       StatisticMethod = "mean"       // 均值
	StatisticMedian     StatisticMethod = "median"     // 中位数
	StatisticPercentile StatisticMethod = "percentile" // 百分位数
)

// Valid 检查统计方法是否合法
func (m StatisticMethod) Valid() bool {
	switch m {
	case StatisticMean, StatisticMedian, StatisticPercentile:
		return true
	}
	return false
}

// BaselineFallback 基准数据不足时的处理策略
type BaselineFallback string

const (
	FallbackError           BaselineFallback = "error"            // 直接报错
	FallbackFacilityDefault BaselineFallback = "facility_default" // 回退到全局均值
)

// Valid 检查回退策略是否合法
func (f BaselineFallback) Valid() bool {
	return f == FallbackError || f == FallbackFacilityDefault
}

// Config 分析配置
//
// 单一不可变配置对象，显式传入每个阶段。
// 时段长度、封顶阈值等数值只在这里出现一次。
type Config struct {
	SlotDurationMinutes int             `json:"slot_duration_minutes"`
	Statistic           StatisticMethod `json:"statistic_method"`
	PercentileValue     float64         `json:"percentile_value"` // 仅 percentile 方法使用，(0,100)
	ByWeekday           bool            `json:"by_weekday"`       // 基准按 时段×星期 聚合

	ReferenceWindow model.DateRange `json:"reference_window"`
	AnalysisWindow  model.DateRange `json:"analysis_window"`

	NormalizationBaseDays      int     `json:"normalization_base_days"`
	NormalizationToleranceDays int     `json:"normalization_tolerance_days"`
	MaxShortagePerDayHours     float64 `json:"max_shortage_per_day_hours"`
	NeedCeilingPerSlot         float64 `json:"need_ceiling_per_slot"`

	BaselineFallback BaselineFallback   `json:"baseline_fallback"`
	RecordPolicy     model.RecordPolicy `json:"record_policy"`
}

// DefaultConfig 返回默认配置（不含窗口，窗口必须由调用方指定）
func DefaultConfig() Config {
	return Config{
		SlotDurationMinutes:        30,
		Statistic:                  StatisticMean,
		PercentileValue:            50,
		ByWeekday:                  false,
		NormalizationBaseDays:      30,
		NormalizationToleranceDays: 7,
		MaxShortagePerDayHours:     5.0,
		NeedCeilingPerSlot:         1.5,
		BaselineFallback:           FallbackFacilityDefault,
		RecordPolicy:               model.RecordPolicyRejectBatch,
	}
}

// Validate 在运行开始前校验配置，快速失败
func (c *Config) Validate() error {
	if c.SlotDurationMinutes <= 0 || (24*60)%c.SlotDurationMinutes != 0 {
		return errors.ConfigError("slot_duration_minutes",
			fmt.Sprintf("%d 分钟无法整除24小时", c.SlotDurationMinutes))
	}
	if !c.Statistic.Valid() {
		return errors.ConfigError("statistic_method", string(c.Statistic))
	}
	if c.Statistic == StatisticPercentile && (c.PercentileValue <= 0 || c.PercentileValue >= 100) {
		return errors.ConfigError("percentile_value",
			fmt.Sprintf("%.2f 超出 (0,100) 范围", c.PercentileValue))
	}
	if err := c.ReferenceWindow.Validate(); err != nil {
		return errors.ConfigError("reference_window", "参考期无效").WithCause(err)
	}
	if err := c.AnalysisWindow.Validate(); err != nil {
		return errors.ConfigError("analysis_window", "分析期无效").WithCause(err)
	}
	if c.NormalizationBaseDays <= 0 {
		return errors.ConfigError("normalization_base_days", "必须为正整数")
	}
	if c.NormalizationToleranceDays < 0 {
		return errors.ConfigError("normalization_tolerance_days", "不能为负数")
	}
	if c.MaxShortagePerDayHours <= 0 || c.MaxShortagePerDayHours > 24 {
		return errors.ConfigError("max_shortage_per_day_hours",
			fmt.Sprintf("%.2f 超出 (0,24] 范围", c.MaxShortagePerDayHours))
	}
	if c.NeedCeilingPerSlot <= 0 {
		return errors.ConfigError("need_ceiling_per_slot", "必须为正数")
	}
	if !c.BaselineFallback.Valid() {
		return errors.ConfigError("baseline_fallback", string(c.BaselineFallback))
	}
	if !c.RecordPolicy.Valid() {
		return errors.ConfigError("record_policy", string(c.RecordPolicy))
	}
	return nil
}
