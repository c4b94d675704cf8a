// Package model 定义缺口分析引擎的核心数据模型
package model

import (
	"time"

	"github.com/quekou/quekou/pkg/errors"
)

// DateFormat 日期格式（所有日期均以字符串形式传递）
const DateFormat = "2006-01-02"

// Scope 统计维度
type Scope string

const (
	ScopeAll        Scope = "all"        // 全机构
	ScopeRole       Scope = "role"       // 按职种
	ScopeEmployment Scope = "employment" // 按雇佣形态
)

// DimensionAll 聚合维度值（不区分职种/雇佣形态）
const DimensionAll = "ALL"

// Scopes 返回所有统计维度（固定顺序）
func Scopes() []Scope {
	return []Scope{ScopeAll, ScopeRole, ScopeEmployment}
}

// Valid 检查维度是否合法
func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeRole, ScopeEmployment:
		return true
	}
	return false
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// Validate 检查日期范围是否合法
func (dr DateRange) Validate() error {
	start, err := time.Parse(DateFormat, dr.StartDate)
	if err != nil {
		return errors.InvalidTimeRange(dr.StartDate, dr.EndDate).WithCause(err)
	}
	end, err := time.Parse(DateFormat, dr.EndDate)
	if err != nil {
		return errors.InvalidTimeRange(dr.StartDate, dr.EndDate).WithCause(err)
	}
	if end.Before(start) {
		return errors.InvalidTimeRange(dr.StartDate, dr.EndDate)
	}
	return nil
}

// Days 返回范围内的天数（含首尾两端）
func (dr DateRange) Days() int {
	start, err1 := time.Parse(DateFormat, dr.StartDate)
	end, err2 := time.Parse(DateFormat, dr.EndDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Dates 返回范围内所有日期（升序）
func (dr DateRange) Dates() []string {
	start, err1 := time.Parse(DateFormat, dr.StartDate)
	end, err2 := time.Parse(DateFormat, dr.EndDate)
	if err1 != nil || err2 != nil || end.Before(start) {
		return nil
	}
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateFormat))
	}
	return dates
}

// Contains 检查日期是否在范围内
func (dr DateRange) Contains(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// WeekdayOf 返回日期对应的星期
func WeekdayOf(date string) (time.Weekday, error) {
	d, err := time.Parse(DateFormat, date)
	if err != nil {
		return 0, errors.InvalidInput("date", "日期格式应为 YYYY-MM-DD").WithCause(err)
	}
	return d.Weekday(), nil
}
