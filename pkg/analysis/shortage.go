package analysis

import (
	"math"

	"github.com/quekou/quekou/pkg/model"
)

// ShortageCell 单个时段的缺口/富余
type ShortageCell struct {
	Date          string  `json:"date"`
	Slot          int     `json:"slot_index"`
	Value         string  `json:"value"`
	ActualCount   float64 `json:"actual_staff_count"`
	NeedValue     float64 `json:"need_value"`
	ShortageHours float64 `json:"shortage_hours"`
	ExcessHours   float64 `json:"excess_hours"`
}

// ShortageResult 缺口计算结果
//
// 同时暴露单元格、按日汇总和全期汇total三个粒度，
// 后续的封顶校验依赖按日粒度。
type ShortageResult struct {
	Scope     model.Scope
	SlotHours float64

	Cells       []ShortageCell     // 按 日期、时段、维度值 排序
	Daily       map[string]float64 // 日期 → 缺口小时数
	DailyExcess map[string]float64 // 日期 → 富余小时数
	ValueTotals map[string]float64 // 维度值 → 缺口小时数

	TotalShortageHours float64
	TotalExcessHours   float64
}

// ComputeShortage 逐单元格计算缺口与富余
//
// 纯函数：shortage = max(0, need-actual) * slotHours，
// 无跨时段、跨日期状态，相同输入必然得到相同输出。
// 基准广播到分析期内的每个日期；输入中缺席的日期实际人力为 0。
func ComputeShortage(h *Heatmap, b *Baseline, cfg Config, sm *model.SlotModel) (*ShortageResult, error) {
	slotHours := sm.SlotHours()
	dates := cfg.AnalysisWindow.Dates()

	sr := &ShortageResult{
		Scope:       h.Scope(),
		SlotHours:   slotHours,
		Daily:       make(map[string]float64),
		DailyExcess: make(map[string]float64),
		ValueTotals: make(map[string]float64),
	}

	for _, date := range dates {
		sr.Daily[date] = 0
		sr.DailyExcess[date] = 0
		for slot := 0; slot < h.SlotsPerDay(); slot++ {
			for _, value := range h.Values() {
				need, err := b.NeedFor(date, slot, value)
				if err != nil {
					return nil, err
				}
				actual := h.Get(date, slot, value)

				shortage := math.Max(0, need-actual) * slotHours
				excess := math.Max(0, actual-need) * slotHours

				sr.Cells = append(sr.Cells, ShortageCell{
					Date:          date,
					Slot:          slot,
					Value:         value,
					ActualCount:   actual,
					NeedValue:     need,
					ShortageHours: shortage,
					ExcessHours:   excess,
				})

				sr.Daily[date] += shortage
				sr.DailyExcess[date] += excess
				sr.ValueTotals[value] += shortage
				sr.TotalShortageHours += shortage
				sr.TotalExcessHours += excess
			}
		}
	}

	return sr, nil
}
