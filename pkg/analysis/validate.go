package analysis

import (
	"fmt"
	"math"

	"github.com/quekou/quekou/pkg/errors"
)

// Stage 校验阶段
//
// 每次运行严格按 RAW → RANGE_CHECKED → PERIOD_NORMALIZED → FINAL
// 单向推进，任何阶段都不可跳过。
type Stage string

const (
	StageRaw              Stage = "RAW"
	StageRangeChecked     Stage = "RANGE_CHECKED"
	StagePeriodNormalized Stage = "PERIOD_NORMALIZED"
	StageFinal            Stage = "FINAL"
)

// SeverityBand 严重度分级（仅用于报表展示，不改动数值）
type SeverityBand string

const (
	SeverityIdeal       SeverityBand = "ideal"        // 日均缺口 < 1h
	SeverityAcceptable  SeverityBand = "acceptable"   // 日均缺口 < 3h
	SeverityNeedsReview SeverityBand = "needs_review" // 日均缺口 < 5h
	SeverityAnomalous   SeverityBand = "anomalous"    // 日均缺口 ≥ 5h
)

// classifySeverity 按日均缺口小时数分级
func classifySeverity(dailyAverage float64) SeverityBand {
	switch {
	case dailyAverage < 1:
		return SeverityIdeal
	case dailyAverage < 3:
		return SeverityAcceptable
	case dailyAverage < 5:
		return SeverityNeedsReview
	default:
		return SeverityAnomalous
	}
}

// ValidationResult 校验与封顶结果
type ValidationResult struct {
	Stage      Stage `json:"stage"`
	WindowDays int   `json:"window_days"`

	// 按日封顶：被缩减日期 → 缩减系数
	CapFactors map[string]float64 `json:"cap_factors,omitempty"`

	// 期长归一化
	Normalized          bool    `json:"normalized"`
	NormalizationFactor float64 `json:"normalization_factor"`

	RawTotalShortageHours float64 `json:"raw_total_shortage_hours"`
	TotalShortageHours    float64 `json:"total_shortage_hours"` // 归一化后
	TotalExcessHours      float64 `json:"total_excess_hours"`   // 归一化后

	DailyAverageShortage float64      `json:"daily_average_shortage_hours"`
	Band                 SeverityBand `json:"severity_band"`
}

// Validator 校验与封顶层
type Validator struct {
	cfg Config
	rec *AnomalyRecorder
}

// NewValidator 创建校验层
func NewValidator(cfg Config, rec *AnomalyRecorder) *Validator {
	return &Validator{cfg: cfg, rec: rec}
}

// Apply 对缺口结果依次执行全部校验阶段
//
// 封顶会就地修改 sr 的单元格与汇总值，使输出表与元数据一致。
func (v *Validator) Apply(sr *ShortageResult) (*ValidationResult, error) {
	vr := &ValidationResult{
		Stage:               StageRaw,
		WindowDays:          v.cfg.AnalysisWindow.Days(),
		CapFactors:          make(map[string]float64),
		NormalizationFactor: 1,
	}

	v.rangeCheck(sr, vr)
	v.periodNormalize(sr, vr)
	if err := v.finalCheck(vr); err != nil {
		return nil, err
	}
	return vr, nil
}

// rangeCheck RAW → RANGE_CHECKED：单日缺口超限时等比缩减该日各时段的缺口值，
// 保留日内分布形状、只约束总量
func (v *Validator) rangeCheck(sr *ShortageResult, vr *ValidationResult) {
	maxPerDay := v.cfg.MaxShortagePerDayHours

	factors := make(map[string]float64)
	for date, daily := range sr.Daily {
		if daily > maxPerDay {
			factor := maxPerDay / daily
			factors[date] = factor
			v.rec.Record(Anomaly{
				Kind:   AnomalyDailyShortageCapped,
				Scope:  sr.Scope,
				Date:   date,
				Before: daily,
				After:  maxPerDay,
				Factor: factor,
			})
		}
	}

	if len(factors) > 0 {
		for i := range sr.Cells {
			if factor, ok := factors[sr.Cells[i].Date]; ok {
				sr.Cells[i].ShortageHours *= factor
			}
		}
		// 按日、按维度值、全期汇总随单元格重算
		sr.TotalShortageHours = 0
		for value := range sr.ValueTotals {
			sr.ValueTotals[value] = 0
		}
		for date := range sr.Daily {
			sr.Daily[date] = 0
		}
		for _, c := range sr.Cells {
			sr.Daily[c.Date] += c.ShortageHours
			sr.ValueTotals[c.Value] += c.ShortageHours
			sr.TotalShortageHours += c.ShortageHours
		}
	}

	vr.CapFactors = factors
	vr.Stage = StageRangeChecked
}

// periodNormalize RANGE_CHECKED → PERIOD_NORMALIZED：分析期长度偏离基准超过容差时，
// 将全期汇总缩放到基准期长度，阻止总量随期长超线性增长
func (v *Validator) periodNormalize(sr *ShortageResult, vr *ValidationResult) {
	vr.RawTotalShortageHours = sr.TotalShortageHours
	vr.TotalShortageHours = sr.TotalShortageHours
	vr.TotalExcessHours = sr.TotalExcessHours

	base := v.cfg.NormalizationBaseDays
	tolerance := v.cfg.NormalizationToleranceDays

	if vr.WindowDays > 0 && abs(vr.WindowDays-base) > tolerance {
		factor := float64(base) / float64(vr.WindowDays)
		vr.Normalized = true
		vr.NormalizationFactor = factor
		vr.TotalShortageHours = sr.TotalShortageHours * factor
		vr.TotalExcessHours = sr.TotalExcessHours * factor
		v.rec.Record(Anomaly{
			Kind:   AnomalyPeriodNormalized,
			Scope:  sr.Scope,
			Before: sr.TotalShortageHours,
			After:  vr.TotalShortageHours,
			Factor: factor,
		})
	}

	if vr.WindowDays > 0 {
		vr.DailyAverageShortage = vr.RawTotalShortageHours / float64(vr.WindowDays)
	}
	vr.Stage = StagePeriodNormalized
}

// finalCheck PERIOD_NORMALIZED → FINAL：物理可能性护栏与严重度分级，不改动数值
func (v *Validator) finalCheck(vr *ValidationResult) error {
	if vr.DailyAverageShortage < 0 || vr.DailyAverageShortage > 24 ||
		math.IsNaN(vr.DailyAverageShortage) || math.IsInf(vr.DailyAverageShortage, 0) {
		return errors.New(errors.CodeInternal,
			fmt.Sprintf("日均缺口 %.4f 小时超出物理可能范围 [0,24]", vr.DailyAverageShortage))
	}
	vr.Band = classifySeverity(vr.DailyAverageShortage)
	vr.Stage = StageFinal
	return nil
}

// abs 整数绝对值
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
