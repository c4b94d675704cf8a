package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/quekou/quekou/pkg/model"
)

// testSlotModel 返回默认的30分钟时段模型
func testSlotModel(t *testing.T) *model.SlotModel {
	t.Helper()
	sm, err := model.NewSlotModel(30)
	if err != nil {
		t.Fatalf("创建时段模型失败: %v", err)
	}
	return sm
}

// testConfig 返回带指定窗口的默认配置
func testConfig(ref, window model.DateRange) Config {
	cfg := DefaultConfig()
	cfg.ReferenceWindow = ref
	cfg.AnalysisWindow = window
	return cfg
}

// slotTimestamp 返回某日期某时段起点的时间戳
func slotTimestamp(t *testing.T, date string, slot int, sm *model.SlotModel) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateFormat, date)
	if err != nil {
		t.Fatalf("解析日期失败: %v", err)
	}
	return d.Add(time.Duration(slot*sm.DurationMinutes()) * time.Minute)
}

// constantRecords 生成窗口内每个时段恒定 perSlot 人的考勤记录
func constantRecords(t *testing.T, window model.DateRange, perSlot int, role, employment string, sm *model.SlotModel) []*model.AttendanceRecord {
	t.Helper()
	var records []*model.AttendanceRecord
	for _, date := range window.Dates() {
		for slot := 0; slot < sm.SlotsPerDay(); slot++ {
			for i := 0; i < perSlot; i++ {
				records = append(records, &model.AttendanceRecord{
					StaffID:        fmt.Sprintf("S%03d", i),
					Role:           role,
					EmploymentType: employment,
					Timestamp:      slotTimestamp(t, date, slot, sm),
					SlotUnits:      1,
				})
			}
		}
	}
	return records
}
