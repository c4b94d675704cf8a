// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx 事务执行器
type Tx interface {
	DB
}

// AttendanceFilter 考勤查询过滤器
type AttendanceFilter struct {
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Role      string `json:"role,omitempty"`
	Limit     int    `json:"limit"`
}

// DefaultAttendanceFilter 返回默认过滤器
func DefaultAttendanceFilter() AttendanceFilter {
	return AttendanceFilter{Limit: 0}
}

// WithDateRange 设置日期范围
func (f AttendanceFilter) WithDateRange(start, end string) AttendanceFilter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// WithRole 设置职种过滤
func (f AttendanceFilter) WithRole(role string) AttendanceFilter {
	f.Role = role
	return f
}
