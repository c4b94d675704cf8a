package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/model"
)

// noWeekday 表示基准不按星期细分
const noWeekday = -1

// patternKey 基准聚合键：时段索引，可选叠加星期
type patternKey struct {
	slot    int
	weekday int // time.Weekday 或 noWeekday
}

// Baseline 需求基准
//
// 按 (时段[, 星期]) 聚合参考期数据得到的统计需求值，
// 广播到分析期内的每个日期使用。整体替换、从不原地修改。
type Baseline struct {
	scope     model.Scope
	byWeekday bool
	ceiling   float64
	values    []string
	needs     map[patternKey]map[string]float64
}

// EstimateBaseline 从参考期热力图估计需求基准
//
// 统计方法、聚合键和上限来自配置。基准值超过 ceiling 时被钳制并记录异常；
// 某个模式在参考期内无任何数据时，按回退策略使用全局均值或报错。
func EstimateBaseline(h *Heatmap, cfg Config, rec *AnomalyRecorder) (*Baseline, error) {
	refDates := h.DatesIn(cfg.ReferenceWindow)
	if len(refDates) == 0 {
		return nil, errors.InsufficientBaseline(
			fmt.Sprintf("scope=%s window=%s~%s", h.Scope(), cfg.ReferenceWindow.StartDate, cfg.ReferenceWindow.EndDate))
	}

	// 日期按星期分组（byWeekday 关闭时全部归入同一组）
	dateGroups := make(map[int][]string)
	for _, d := range refDates {
		wd := noWeekday
		if cfg.ByWeekday {
			w, err := model.WeekdayOf(d)
			if err != nil {
				return nil, err
			}
			wd = int(w)
		}
		dateGroups[wd] = append(dateGroups[wd], d)
	}

	b := &Baseline{
		scope:     h.Scope(),
		byWeekday: cfg.ByWeekday,
		ceiling:   cfg.NeedCeilingPerSlot,
		values:    h.Values(),
		needs:     make(map[patternKey]map[string]float64),
	}

	// 聚合键全集：byWeekday 时枚举全部星期，
	// 参考期缺某个星期的数据同样走回退/报错路径
	weekdays := []int{noWeekday}
	if cfg.ByWeekday {
		weekdays = []int{0, 1, 2, 3, 4, 5, 6}
	}

	for _, value := range b.values {
		// 全局均值：参考期内该维度值在所有时段上的平均，用作回退基准
		facilityDefault := facilityMean(h, refDates, value)

		for _, wd := range weekdays {
			groupDates := dateGroups[wd]
			for slot := 0; slot < h.SlotsPerDay(); slot++ {
				key := patternKey{slot: slot, weekday: wd}

				samples := make([]float64, 0, len(groupDates))
				for _, d := range groupDates {
					samples = append(samples, h.Get(d, slot, value))
				}

				need, err := applyStatistic(samples, cfg)
				if err != nil {
					if cfg.BaselineFallback == FallbackFacilityDefault {
						rec.Record(Anomaly{
							Kind:    AnomalyBaselineFallback,
							Scope:   b.scope,
							Pattern: patternLabel(key, value),
							Before:  0,
							After:   facilityDefault,
						})
						need = facilityDefault
					} else {
						return nil, err
					}
				}

				if need > b.ceiling {
					rec.Record(Anomaly{
						Kind:    AnomalyNeedCeilingExceeded,
						Scope:   b.scope,
						Pattern: patternLabel(key, value),
						Before:  need,
						After:   b.ceiling,
					})
					need = b.ceiling
				}

				if b.needs[key] == nil {
					b.needs[key] = make(map[string]float64)
				}
				b.needs[key][value] = need
			}
		}
	}

	return b, nil
}

// NeedFor 返回指定日期、时段、维度值的需求基准（广播语义）
//
// 基准按模式存储而非按日期累计，因此总需求不会随分析期变长而放大。
func (b *Baseline) NeedFor(date string, slot int, value string) (float64, error) {
	wd := noWeekday
	if b.byWeekday {
		w, err := model.WeekdayOf(date)
		if err != nil {
			return 0, err
		}
		wd = int(w)
	}
	byValue, ok := b.needs[patternKey{slot: slot, weekday: wd}]
	if !ok {
		return 0, errors.InsufficientBaseline(patternLabel(patternKey{slot: slot, weekday: wd}, value))
	}
	need, ok := byValue[value]
	if !ok {
		return 0, errors.InsufficientBaseline(patternLabel(patternKey{slot: slot, weekday: wd}, value))
	}
	return need, nil
}

// Scope 返回基准的统计维度
func (b *Baseline) Scope() model.Scope {
	return b.scope
}

// Values 返回维度取值列表
func (b *Baseline) Values() []string {
	return b.values
}

// NeedRow 需求基准输出行
type NeedRow struct {
	Scope     model.Scope `json:"scope"`
	Value     string      `json:"value"`
	Slot      int         `json:"slot_index"`
	Weekday   string      `json:"weekday,omitempty"` // 基准按星期细分时填写
	NeedValue float64     `json:"need_value"`
}

// Rows 返回基准表（按维度值、星期、时段排序）
func (b *Baseline) Rows() []NeedRow {
	keys := make([]patternKey, 0, len(b.needs))
	for k := range b.needs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].weekday != keys[j].weekday {
			return keys[i].weekday < keys[j].weekday
		}
		return keys[i].slot < keys[j].slot
	})

	var rows []NeedRow
	for _, value := range b.values {
		for _, k := range keys {
			need, ok := b.needs[k][value]
			if !ok {
				continue
			}
			row := NeedRow{
				Scope:     b.scope,
				Value:     value,
				Slot:      k.slot,
				NeedValue: need,
			}
			if k.weekday != noWeekday {
				row.Weekday = time.Weekday(k.weekday).String()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// facilityMean 计算参考期内某维度值在所有 日期×时段 上的均值
func facilityMean(h *Heatmap, dates []string, value string) float64 {
	if len(dates) == 0 || h.SlotsPerDay() == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range dates {
		for slot := 0; slot < h.SlotsPerDay(); slot++ {
			sum += h.Get(d, slot, value)
		}
	}
	return sum / float64(len(dates)*h.SlotsPerDay())
}

// applyStatistic 对样本应用配置的统计方法
func applyStatistic(samples []float64, cfg Config) (float64, error) {
	if len(samples) == 0 {
		return 0, errors.InsufficientBaseline("样本为空")
	}
	switch cfg.Statistic {
	case StatisticMean:
		return mean(samples), nil
	case StatisticMedian:
		return percentile(samples, 50), nil
	case StatisticPercentile:
		return percentile(samples, cfg.PercentileValue), nil
	default:
		return 0, errors.ConfigError("statistic_method", string(cfg.Statistic))
	}
}

// mean 计算均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile 计算 p 百分位数（排序后线性插值）
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// patternLabel 生成模式的可读标签
func patternLabel(k patternKey, value string) string {
	if k.weekday == noWeekday {
		return fmt.Sprintf("slot=%d value=%s", k.slot, value)
	}
	return fmt.Sprintf("slot=%d weekday=%s value=%s", k.slot, time.Weekday(k.weekday).String(), value)
}
