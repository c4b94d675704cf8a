package model

import (
	"time"

	"github.com/quekou/quekou/pkg/errors"
)

// AttendanceRecord 原始考勤记录
//
// 由上游数据接入方生成，引擎只读不改。
// SlotUnits 表示该记录覆盖的时段数，负值属于数据完整性错误。
type AttendanceRecord struct {
	StaffID        string    `json:"staff_id"`
	Role           string    `json:"role"`
	EmploymentType string    `json:"employment_type"`
	Timestamp      time.Time `json:"timestamp"`
	SlotUnits      int       `json:"slot_units"`
}

// Validate 检查记录是否合法
//
// 负的 SlotUnits 直接报错，绝不静默截断为零，
// 否则会掩盖上游接入环节的缺陷。
func (r *AttendanceRecord) Validate() error {
	if r.StaffID == "" {
		return errors.InvalidRecord(r.StaffID, "staff_id 不能为空")
	}
	if r.Timestamp.IsZero() {
		return errors.InvalidRecord(r.StaffID, "timestamp 不能为空")
	}
	if r.SlotUnits < 0 {
		return errors.InvalidRecord(r.StaffID, "slot_units 不能为负数")
	}
	return nil
}

// DimensionValue 返回记录在指定统计维度下的取值
func (r *AttendanceRecord) DimensionValue(scope Scope) string {
	switch scope {
	case ScopeRole:
		return r.Role
	case ScopeEmployment:
		return r.EmploymentType
	default:
		return DimensionAll
	}
}

// RecordPolicy 无效记录处理策略
type RecordPolicy string

const (
	RecordPolicyRejectBatch RecordPolicy = "reject_batch" // 整批拒绝
	RecordPolicySkipAndLog  RecordPolicy = "skip_and_log" // 跳过并记录日志
)

// Valid 检查策略是否合法
func (p RecordPolicy) Valid() bool {
	return p == RecordPolicyRejectBatch || p == RecordPolicySkipAndLog
}
