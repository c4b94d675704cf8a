package handler

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quekou/quekou/internal/config"
	"github.com/quekou/quekou/pkg/model"
)

func testHandler(t *testing.T) *AnalysisHandler {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	return NewAnalysisHandler(cfg, nil, nil)
}

// inlineRecords 参考期满编、分析期第一天 caregiver 缺席前4个时段
func inlineRecords(t *testing.T) []RecordInput {
	t.Helper()
	var records []RecordInput
	add := func(date string, slot int, staffID, role, employment string) {
		ts, err := time.Parse(model.DateFormat, date)
		if err != nil {
			t.Fatalf("解析日期失败: %v", err)
		}
		records = append(records, RecordInput{
			StaffID:        staffID,
			Role:           role,
			EmploymentType: employment,
			Timestamp:      ts.Add(time.Duration(slot*30) * time.Minute).Format(time.RFC3339),
			SlotUnits:      1,
		})
	}

	ref := model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"}
	for _, date := range ref.Dates() {
		for slot := 0; slot < 48; slot++ {
			add(date, slot, "C001", "caregiver", "full_time")
			add(date, slot, "N001", "nurse", "part_time")
		}
	}
	for slot := 0; slot < 48; slot++ {
		if slot >= 4 {
			add("2026-03-09", slot, "C001", "caregiver", "full_time")
		}
		add("2026-03-09", slot, "N001", "nurse", "part_time")
	}
	return records
}

func postRun(t *testing.T, h *AnalysisHandler, req *RunRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("序列化请求失败: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/run", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Run(w, r)
	return w
}

func TestAnalysisHandler_Run(t *testing.T) {
	h := testHandler(t)

	ceiling := 10.0
	tolerance := 365
	w := postRun(t, h, &RunRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
		Records:         inlineRecords(t),
		Overrides: &ConfigOverrides{
			NeedCeilingPerSlot:         &ceiling,
			NormalizationToleranceDays: &tolerance,
		},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success response")
	}
	if resp.RunID == "" {
		t.Error("Expected run_id")
	}
	if len(resp.Summary) != 3 {
		t.Fatalf("Expected 3 summary rows, got %d", len(resp.Summary))
	}

	// caregiver 缺席 4 个时段 × 0.5h = 2.0h
	for _, row := range resp.Summary {
		if row.Scope == model.ScopeAll {
			if math.Abs(row.TotalShortageHours-2.0) > 1e-6 {
				t.Errorf("Expected ALL total 2.0h, got %f", row.TotalShortageHours)
			}
			if !row.Reconciled {
				t.Error("Expected ALL scope reconciled")
			}
		}
	}

	sum := 0.0
	for _, entry := range resp.RoleBreakdown {
		sum += entry.ShortageHours
	}
	if math.Abs(sum-2.0) > 1e-6 {
		t.Errorf("Expected role breakdown sum 2.0h, got %f", sum)
	}

	// 未请求明细表时不应返回
	if len(resp.HeatmapRows) != 0 || len(resp.ShortageRows) != 0 {
		t.Error("Expected no detail tables without include_tables")
	}
}

func TestAnalysisHandler_RunIncludeTables(t *testing.T) {
	h := testHandler(t)

	ceiling := 10.0
	w := postRun(t, h, &RunRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
		Records:         inlineRecords(t),
		Overrides:       &ConfigOverrides{NeedCeilingPerSlot: &ceiling},
		IncludeTables:   true,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}

	// 稠密输出：ALL 1天×48时段 + role 2值 + employment 2值 = 48×5
	if len(resp.HeatmapRows) != 48*5 {
		t.Errorf("Expected 240 heatmap rows, got %d", len(resp.HeatmapRows))
	}
	if len(resp.ShortageRows) != 48*5 {
		t.Errorf("Expected 240 shortage rows, got %d", len(resp.ShortageRows))
	}
	if len(resp.NeedRows) == 0 {
		t.Error("Expected need rows")
	}
}

func TestAnalysisHandler_RunMethodNotAllowed(t *testing.T) {
	h := testHandler(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/run", nil)
	w := httptest.NewRecorder()
	h.Run(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for GET, got %d", w.Code)
	}
}

func TestAnalysisHandler_RunInvalidOverride(t *testing.T) {
	h := testHandler(t)
	badDuration := 7
	w := postRun(t, h, &RunRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
		Records:         inlineRecords(t),
		Overrides:       &ConfigOverrides{SlotDurationMinutes: &badDuration},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid slot duration, got %d", w.Code)
	}
}

func TestAnalysisHandler_RunNoRecordsNoDatabase(t *testing.T) {
	h := testHandler(t)
	w := postRun(t, h, &RunRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without records or database, got %d", w.Code)
	}
}

func TestAnalysisHandler_RunBadTimestamp(t *testing.T) {
	h := testHandler(t)
	w := postRun(t, h, &RunRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
		Records: []RecordInput{
			{StaffID: "S001", Role: "caregiver", EmploymentType: "full_time", Timestamp: "2026/03/09 08:00", SlotUnits: 1},
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad timestamp, got %d", w.Code)
	}
}

func TestAnalysisHandler_Scenarios(t *testing.T) {
	h := testHandler(t)

	ceiling := 10.0
	median := "median"
	req := &ScenariosRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
		Records:         inlineRecords(t),
		Scenarios: []ScenarioInput{
			{Name: "mean", Overrides: &ConfigOverrides{NeedCeilingPerSlot: &ceiling}},
			{Name: "median", Overrides: &ConfigOverrides{NeedCeilingPerSlot: &ceiling, StatisticMethod: &median}},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("序列化请求失败: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scenarios", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Scenarios(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScenariosResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Scenarios) != 2 {
		t.Fatalf("Expected 2 scenario outputs, got %d", len(resp.Scenarios))
	}
	for i, sc := range resp.Scenarios {
		if !sc.Success {
			t.Errorf("Scenario %d (%s) failed: %s", i, sc.Name, sc.Error)
		}
		if len(sc.Summary) != 3 {
			t.Errorf("Scenario %s: expected 3 summary rows, got %d", sc.Name, len(sc.Summary))
		}
	}
}

func TestAnalysisHandler_ScenariosEmpty(t *testing.T) {
	h := testHandler(t)
	body, _ := json.Marshal(&ScenariosRequest{
		AnalysisWindow:  model.DateRange{StartDate: "2026-03-09", EndDate: "2026-03-09"},
		ReferenceWindow: model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"},
	})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/scenarios", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Scenarios(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty scenarios, got %d", w.Code)
	}
}
