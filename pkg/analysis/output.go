package analysis

import (
	"sort"

	"github.com/quekou/quekou/pkg/model"
)

// HeatmapRow 热力图输出行
type HeatmapRow struct {
	Date        string      `json:"date"`
	Slot        int         `json:"slot_index"`
	Scope       model.Scope `json:"scope"`
	Value       string      `json:"value"`
	ActualCount float64     `json:"actual_staff_count"`
}

// SummaryRow 缺口汇总输出行
type SummaryRow struct {
	Scope                 model.Scope  `json:"scope"`
	TotalShortageHours    float64      `json:"total_shortage_hours"`
	TotalExcessHours      float64      `json:"total_excess_hours"`
	DailyAverageShortage  float64      `json:"daily_average_shortage_hours"`
	SeverityBand          SeverityBand `json:"severity_band"`
	Normalized            bool         `json:"normalized"`
	NormalizationFactor   float64      `json:"normalization_factor"`
	RawTotalShortageHours float64      `json:"raw_total_shortage_hours"`
	Reconciled            bool         `json:"reconciled"`
	CorrectionApplied     float64      `json:"correction_applied"`
}

// HeatmapRows 返回全部维度的热力图表
//
// 在分析期 × 全部时段上稠密输出（缺失单元格为 0），行序确定。
func (r *Result) HeatmapRows() []HeatmapRow {
	var rows []HeatmapRow
	for _, scope := range model.Scopes() {
		sr, ok := r.Scopes[scope]
		if !ok {
			continue
		}
		h := sr.Heatmap
		for _, date := range r.Config.AnalysisWindow.Dates() {
			for slot := 0; slot < h.SlotsPerDay(); slot++ {
				for _, value := range h.Values() {
					rows = append(rows, HeatmapRow{
						Date:        date,
						Slot:        slot,
						Scope:       scope,
						Value:       value,
						ActualCount: h.Get(date, slot, value),
					})
				}
			}
		}
	}
	return rows
}

// NeedRows 返回全部维度的需求基准表
func (r *Result) NeedRows() []NeedRow {
	var rows []NeedRow
	for _, scope := range model.Scopes() {
		if sr, ok := r.Scopes[scope]; ok {
			rows = append(rows, sr.Baseline.Rows()...)
		}
	}
	return rows
}

// ShortageRows 返回全部维度的缺口明细表（封顶后的值）
func (r *Result) ShortageRows() []ShortageCell {
	var rows []ShortageCell
	for _, scope := range model.Scopes() {
		if sr, ok := r.Scopes[scope]; ok {
			rows = append(rows, sr.Shortage.Cells...)
		}
	}
	return rows
}

// Summary 返回各维度的缺口汇总（含对账元数据），行序固定
func (r *Result) Summary() []SummaryRow {
	var rows []SummaryRow
	for _, scope := range model.Scopes() {
		sr, ok := r.Scopes[scope]
		if !ok {
			continue
		}
		vr := sr.Validation
		outcome := r.Reconciles[scope]
		rows = append(rows, SummaryRow{
			Scope:                 scope,
			TotalShortageHours:    vr.TotalShortageHours,
			TotalExcessHours:      vr.TotalExcessHours,
			DailyAverageShortage:  vr.DailyAverageShortage,
			SeverityBand:          vr.Band,
			Normalized:            vr.Normalized,
			NormalizationFactor:   vr.NormalizationFactor,
			RawTotalShortageHours: vr.RawTotalShortageHours,
			Reconciled:            outcome.Reconciled,
			CorrectionApplied:     outcome.CorrectionApplied,
		})
	}
	return rows
}

// BreakdownEntry 对账后的维度分解条目
type BreakdownEntry struct {
	Value         string  `json:"value"`
	ShortageHours float64 `json:"shortage_hours"`
}

// Breakdown 返回指定维度对账后的缺口分解
func (r *Result) Breakdown(scope model.Scope) []BreakdownEntry {
	sr, ok := r.Scopes[scope]
	if !ok || sr.ReconciledTotals == nil {
		return nil
	}
	values := make([]string, 0, len(sr.ReconciledTotals))
	for v := range sr.ReconciledTotals {
		values = append(values, v)
	}
	sort.Strings(values)

	entries := make([]BreakdownEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, BreakdownEntry{Value: v, ShortageHours: sr.ReconciledTotals[v]})
	}
	return entries
}
