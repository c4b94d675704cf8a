package analysis

import (
	"sort"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/logger"
	"github.com/quekou/quekou/pkg/model"
)

// cellKey 热力图单元格键
type cellKey struct {
	date  string
	slot  int
	value string
}

// Heatmap 实际人力热力图
//
// 底层按稀疏方式存储，但对外的读取契约是稠密的：
// 输入中出现的每个日期 × 每个时段都有定义值，缺失单元格视为 0。
type Heatmap struct {
	scope       model.Scope
	slotsPerDay int
	cells       map[cellKey]float64
	dates       []string // 升序
	values      []string // 升序
	skipped     int      // 按策略跳过的无效记录数
}

// BuildHeatmap 将考勤记录聚合为指定维度的热力图
//
// 同一 (日期, 时段, 维度值) 的 SlotUnits 求和得到实际人力值。
// 负的 SlotUnits 按 policy 处理：整批拒绝或跳过并记录日志。
func BuildHeatmap(records []*model.AttendanceRecord, scope model.Scope, sm *model.SlotModel, policy model.RecordPolicy) (*Heatmap, error) {
	if !scope.Valid() {
		return nil, errors.InvalidInput("scope", string(scope))
	}

	h := &Heatmap{
		scope:       scope,
		slotsPerDay: sm.SlotsPerDay(),
		cells:       make(map[cellKey]float64),
	}

	dateSet := make(map[string]struct{})
	valueSet := make(map[string]struct{})

	for _, r := range records {
		if err := r.Validate(); err != nil {
			if policy == model.RecordPolicySkipAndLog {
				logger.Warn().
					Str("staff_id", r.StaffID).
					Time("timestamp", r.Timestamp).
					Int("slot_units", r.SlotUnits).
					Msg("跳过无效考勤记录")
				h.skipped++
				continue
			}
			return nil, err
		}

		date, slot := sm.SlotOf(r.Timestamp)
		value := r.DimensionValue(scope)

		dateSet[date] = struct{}{}
		valueSet[value] = struct{}{}

		if r.SlotUnits > 0 {
			h.cells[cellKey{date: date, slot: slot, value: value}] += float64(r.SlotUnits)
		}
	}

	h.dates = sortedKeys(dateSet)
	h.values = sortedKeys(valueSet)
	return h, nil
}

// Scope 返回热力图的统计维度
func (h *Heatmap) Scope() model.Scope {
	return h.scope
}

// SlotsPerDay 返回每天的时段数
func (h *Heatmap) SlotsPerDay() int {
	return h.slotsPerDay
}

// Dates 返回输入中出现过的日期（升序）
func (h *Heatmap) Dates() []string {
	return h.dates
}

// Values 返回维度取值列表（升序）
func (h *Heatmap) Values() []string {
	return h.values
}

// Skipped 返回按策略跳过的记录数
func (h *Heatmap) Skipped() int {
	return h.skipped
}

// Get 返回指定单元格的实际人力值，未出现的单元格为 0
func (h *Heatmap) Get(date string, slot int, value string) float64 {
	return h.cells[cellKey{date: date, slot: slot, value: value}]
}

// DatesIn 返回热力图中落在指定窗口内的日期（升序）
func (h *Heatmap) DatesIn(window model.DateRange) []string {
	var dates []string
	for _, d := range h.dates {
		if window.Contains(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

// sortedKeys 返回集合的有序键列表
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
