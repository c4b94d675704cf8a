package analysis

import (
	"math"
	"testing"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/model"
)

// buildRefHeatmap 在参考期的指定时段放置每日取值序列
func buildRefHeatmap(t *testing.T, dates []string, slot int, dailyValues []float64, sm *model.SlotModel) *Heatmap {
	t.Helper()
	if len(dates) != len(dailyValues) {
		t.Fatalf("日期数与取值数不一致")
	}

	var records []*model.AttendanceRecord
	for i, date := range dates {
		units := int(dailyValues[i])
		records = append(records, &model.AttendanceRecord{
			StaffID:        "S001",
			Role:           "caregiver",
			EmploymentType: "full_time",
			Timestamp:      slotTimestamp(t, date, slot, sm),
			SlotUnits:      units,
		})
	}

	h, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicyRejectBatch)
	if err != nil {
		t.Fatalf("构建热力图失败: %v", err)
	}
	return h
}

func TestEstimateBaseline_Mean(t *testing.T) {
	sm := testSlotModel(t)
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{1, 2, 3}, sm)

	cfg := testConfig(ref, ref)
	cfg.NeedCeilingPerSlot = 5

	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	need, err := b.NeedFor("2026-03-02", 18, model.DimensionAll)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if need != 2 {
		t.Errorf("Expected mean need 2, got %f", need)
	}
}

func TestEstimateBaseline_MedianIgnoresOutlier(t *testing.T) {
	sm := testSlotModel(t)
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-06"}
	// 含离群值 10 的序列：中位数应为 2，而不是被拉高的均值
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{1, 2, 2, 3, 10}, sm)

	cfg := testConfig(ref, ref)
	cfg.Statistic = StatisticMedian
	cfg.NeedCeilingPerSlot = 20 // 上限足够高，确保测的是中位数本身

	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	need, err := b.NeedFor("2026-03-02", 18, model.DimensionAll)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if need != 2 {
		t.Errorf("Expected median 2, got %f", need)
	}
}

func TestEstimateBaseline_PercentileP50EqualsMedian(t *testing.T) {
	sm := testSlotModel(t)
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-06"}
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{1, 2, 2, 3, 10}, sm)

	cfg := testConfig(ref, ref)
	cfg.Statistic = StatisticPercentile
	cfg.PercentileValue = 50
	cfg.NeedCeilingPerSlot = 20

	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	need, err := b.NeedFor("2026-03-02", 18, model.DimensionAll)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if need != 2 {
		t.Errorf("Expected p50 = 2, got %f", need)
	}
}

func TestEstimateBaseline_CeilingClamp(t *testing.T) {
	sm := testSlotModel(t)
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{10, 10, 10}, sm)

	cfg := testConfig(ref, ref) // 默认上限 1.5

	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	need, err := b.NeedFor("2026-03-02", 18, model.DimensionAll)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if need != 1.5 {
		t.Errorf("Expected clamped need 1.5, got %f", need)
	}

	// 钳制事件必须可追溯
	if rec.CountByKind(AnomalyNeedCeilingExceeded) != 1 {
		t.Errorf("Expected 1 ceiling anomaly, got %d", rec.CountByKind(AnomalyNeedCeilingExceeded))
	}
	found := false
	for _, a := range rec.Anomalies() {
		if a.Kind == AnomalyNeedCeilingExceeded && a.Before == 10 && a.After == 1.5 {
			found = true
		}
	}
	if !found {
		t.Error("Expected anomaly with before=10 after=1.5")
	}
}

func TestEstimateBaseline_EmptyReferenceWindow(t *testing.T) {
	sm := testSlotModel(t)
	dataWindow := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	h := buildRefHeatmap(t, dataWindow.Dates(), 18, []float64{1, 1, 1}, sm)

	// 参考期与数据完全不相交
	cfg := testConfig(model.DateRange{StartDate: "2026-01-01", EndDate: "2026-01-30"}, dataWindow)

	rec := NewAnomalyRecorder("test", nil)
	_, err := EstimateBaseline(h, cfg, rec)
	if err == nil {
		t.Fatal("Expected error for empty reference window")
	}
	if !errors.Is(err, errors.CodeInsufficientBaseline) {
		t.Errorf("Expected INSUFFICIENT_BASELINE, got %v", errors.GetCode(err))
	}
}

func TestEstimateBaseline_WeekdayFallback(t *testing.T) {
	sm := testSlotModel(t)
	// 参考期只有周一到周三：2026-03-02 ~ 2026-03-04
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{2, 2, 2}, sm)

	cfg := testConfig(ref, model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-08"})
	cfg.ByWeekday = true
	cfg.NeedCeilingPerSlot = 5

	// 回退策略：缺失的星期用全局均值补齐
	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error with fallback: %v", err)
	}

	// 2026-03-07 是周六，参考期内无周六数据
	need, err := b.NeedFor("2026-03-07", 18, model.DimensionAll)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// 全局均值 = 2 / 48 个时段
	expected := 2.0 / 48.0
	if math.Abs(need-expected) > 1e-9 {
		t.Errorf("Expected fallback need %f, got %f", expected, need)
	}
	if rec.CountByKind(AnomalyBaselineFallback) == 0 {
		t.Error("Expected baseline fallback anomalies")
	}

	// 报错策略：缺失的星期直接失败
	cfg.BaselineFallback = FallbackError
	_, err = EstimateBaseline(h, cfg, NewAnomalyRecorder("test", nil))
	if err == nil {
		t.Fatal("Expected error with FallbackError policy")
	}
	if !errors.Is(err, errors.CodeInsufficientBaseline) {
		t.Errorf("Expected INSUFFICIENT_BASELINE, got %v", errors.GetCode(err))
	}
}

func TestEstimateBaseline_BroadcastDoesNotScaleWithWindow(t *testing.T) {
	sm := testSlotModel(t)
	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	h := buildRefHeatmap(t, ref.Dates(), 18, []float64{1, 1, 1}, sm)

	cfg := testConfig(ref, ref)
	cfg.NeedCeilingPerSlot = 5

	rec := NewAnomalyRecorder("test", nil)
	b, err := EstimateBaseline(h, cfg, rec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 同一模式广播到任意日期都是同一个值（按模式存储，不随分析期累计）
	n1, _ := b.NeedFor("2026-03-02", 18, model.DimensionAll)
	n2, _ := b.NeedFor("2026-06-15", 18, model.DimensionAll)
	if n1 != n2 {
		t.Errorf("Expected identical broadcast need, got %f and %f", n1, n2)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 2, 3, 10}

	if got := percentile(values, 50); got != 2 {
		t.Errorf("Expected p50=2, got %f", got)
	}
	if got := percentile(values, 100); got != 10 {
		t.Errorf("Expected p100=10, got %f", got)
	}
	if got := percentile([]float64{5}, 75); got != 5 {
		t.Errorf("Expected single-value percentile 5, got %f", got)
	}

	// p25 位于 2 与 2 之间
	if got := percentile(values, 25); got != 2 {
		t.Errorf("Expected p25=2, got %f", got)
	}
}
