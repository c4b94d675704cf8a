package analysis

import (
	"testing"
	"time"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/model"
)

func TestBuildHeatmap_SumsSlotUnits(t *testing.T) {
	sm := testSlotModel(t)

	records := []*model.AttendanceRecord{
		{StaffID: "S001", Role: "caregiver", EmploymentType: "full_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 18, sm), SlotUnits: 1},
		{StaffID: "S002", Role: "caregiver", EmploymentType: "part_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 18, sm), SlotUnits: 1},
		{StaffID: "S003", Role: "nurse", EmploymentType: "full_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 18, sm), SlotUnits: 2},
	}

	h, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicyRejectBatch)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := h.Get("2026-03-02", 18, model.DimensionAll); got != 4 {
		t.Errorf("Expected 4 staff at slot 18, got %f", got)
	}

	// 稠密契约：没有记录的时段为 0
	if got := h.Get("2026-03-02", 19, model.DimensionAll); got != 0 {
		t.Errorf("Expected 0 staff at slot 19, got %f", got)
	}

	if len(h.Dates()) != 1 || h.Dates()[0] != "2026-03-02" {
		t.Errorf("Expected single date 2026-03-02, got %v", h.Dates())
	}
}

func TestBuildHeatmap_RoleDimension(t *testing.T) {
	sm := testSlotModel(t)

	records := []*model.AttendanceRecord{
		{StaffID: "S001", Role: "caregiver", EmploymentType: "full_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 18, sm), SlotUnits: 1},
		{StaffID: "S003", Role: "nurse", EmploymentType: "full_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 18, sm), SlotUnits: 2},
	}

	h, err := BuildHeatmap(records, model.ScopeRole, sm, model.RecordPolicyRejectBatch)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := h.Get("2026-03-02", 18, "caregiver"); got != 1 {
		t.Errorf("Expected 1 caregiver, got %f", got)
	}
	if got := h.Get("2026-03-02", 18, "nurse"); got != 2 {
		t.Errorf("Expected 2 nurses, got %f", got)
	}

	values := h.Values()
	if len(values) != 2 || values[0] != "caregiver" || values[1] != "nurse" {
		t.Errorf("Expected sorted values [caregiver nurse], got %v", values)
	}
}

func TestBuildHeatmap_NegativeSlotUnits(t *testing.T) {
	sm := testSlotModel(t)

	records := []*model.AttendanceRecord{
		{StaffID: "S001", Role: "caregiver", EmploymentType: "full_time",
			Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), SlotUnits: -1},
	}

	// 默认策略：整批拒绝
	_, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicyRejectBatch)
	if err == nil {
		t.Fatal("Expected error for negative slot_units")
	}
	if !errors.Is(err, errors.CodeInvalidRecord) {
		t.Errorf("Expected INVALID_RECORD, got %v", errors.GetCode(err))
	}

	// 跳过策略：记录被丢弃并计数，绝不截断为零
	h, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicySkipAndLog)
	if err != nil {
		t.Fatalf("Unexpected error with skip policy: %v", err)
	}
	if h.Skipped() != 1 {
		t.Errorf("Expected 1 skipped record, got %d", h.Skipped())
	}
	if len(h.Dates()) != 0 {
		t.Errorf("Expected no dates from skipped record, got %v", h.Dates())
	}
}

func TestBuildHeatmap_ZeroUnitsKeepsDate(t *testing.T) {
	sm := testSlotModel(t)

	records := []*model.AttendanceRecord{
		{StaffID: "S001", Role: "caregiver", EmploymentType: "full_time",
			Timestamp: slotTimestamp(t, "2026-03-02", 0, sm), SlotUnits: 0},
	}

	h, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicyRejectBatch)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// 零覆盖的记录仍然让该日期出现在日期轴上
	if len(h.Dates()) != 1 {
		t.Errorf("Expected date axis to include the record date, got %v", h.Dates())
	}
	if got := h.Get("2026-03-02", 0, model.DimensionAll); got != 0 {
		t.Errorf("Expected 0, got %f", got)
	}
}

func TestHeatmap_DatesIn(t *testing.T) {
	sm := testSlotModel(t)
	window := model.DateRange{StartDate: "2026-03-01", EndDate: "2026-03-05"}
	records := constantRecords(t, window, 1, "caregiver", "full_time", sm)

	h, err := BuildHeatmap(records, model.ScopeAll, sm, model.RecordPolicyRejectBatch)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sub := h.DatesIn(model.DateRange{StartDate: "2026-03-02", EndDate: "2026-03-04"})
	if len(sub) != 3 {
		t.Errorf("Expected 3 dates in subwindow, got %d", len(sub))
	}
}
