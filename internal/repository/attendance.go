package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/quekou/quekou/pkg/model"
)

// AttendanceRepository 考勤记录仓储
//
// 考勤表由上游接入方写入，引擎侧只读。
type AttendanceRepository struct {
	db DB
}

// NewAttendanceRepository 创建考勤仓储
func NewAttendanceRepository(db DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByWindow 读取指定窗口内的长表格式考勤记录
func (r *AttendanceRepository) ListByWindow(ctx context.Context, filter AttendanceFilter) ([]*model.AttendanceRecord, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("recorded_at >= $%d::date", argNum))
		args = append(args, filter.StartDate)
		argNum++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("recorded_at < $%d::date + interval '1 day'", argNum))
		args = append(args, filter.EndDate)
		argNum++
	}

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argNum))
		args = append(args, filter.Role)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT recorded_at, staff_id, role, employment_type, slot_units
		FROM attendance_records
		%s
		ORDER BY recorded_at, staff_id
	`, whereClause)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询考勤记录失败: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec := &model.AttendanceRecord{}
		if err := rows.Scan(&rec.Timestamp, &rec.StaffID, &rec.Role, &rec.EmploymentType, &rec.SlotUnits); err != nil {
			return nil, fmt.Errorf("扫描考勤记录失败: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历考勤记录失败: %w", err)
	}

	return records, nil
}

// CountByWindow 统计窗口内的记录数
func (r *AttendanceRepository) CountByWindow(ctx context.Context, startDate, endDate string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attendance_records
		WHERE recorded_at >= $1::date AND recorded_at < $2::date + interval '1 day'
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, startDate, endDate).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计考勤记录失败: %w", err)
	}
	return count, nil
}
