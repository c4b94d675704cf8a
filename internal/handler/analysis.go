// Package handler 提供API处理器
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quekou/quekou/internal/config"
	"github.com/quekou/quekou/internal/metrics"
	"github.com/quekou/quekou/internal/repository"
	"github.com/quekou/quekou/pkg/analysis"
	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/logger"
	"github.com/quekou/quekou/pkg/model"
)

// AnalysisHandler 缺口分析处理器
type AnalysisHandler struct {
	cfg        *config.Config
	attendance *repository.AttendanceRepository // 可为 nil（未配置数据库）
	results    *repository.ResultRepository     // 可为 nil
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(cfg *config.Config, attendance *repository.AttendanceRepository, results *repository.ResultRepository) *AnalysisHandler {
	return &AnalysisHandler{cfg: cfg, attendance: attendance, results: results}
}

// RecordInput 考勤记录输入
type RecordInput struct {
	StaffID        string `json:"staff_id"`
	Role           string `json:"role"`
	EmploymentType string `json:"employment_type"`
	Timestamp      string `json:"timestamp"` // RFC3339
	SlotUnits      int    `json:"slot_units"`
}

// ConfigOverrides 请求级配置覆盖（缺省项沿用服务默认配置）
type ConfigOverrides struct {
	SlotDurationMinutes        *int     `json:"slot_duration_minutes,omitempty"`
	StatisticMethod            *string  `json:"statistic_method,omitempty"`
	PercentileValue            *float64 `json:"percentile_value,omitempty"`
	ByWeekday                  *bool    `json:"by_weekday,omitempty"`
	NormalizationBaseDays      *int     `json:"normalization_base_days,omitempty"`
	NormalizationToleranceDays *int     `json:"normalization_tolerance_days,omitempty"`
	MaxShortagePerDayHours     *float64 `json:"max_shortage_per_day_hours,omitempty"`
	NeedCeilingPerSlot         *float64 `json:"need_ceiling_per_slot,omitempty"`
	BaselineFallback           *string  `json:"baseline_fallback,omitempty"`
	RecordPolicy               *string  `json:"record_policy,omitempty"`
}

// RunRequest 分析运行请求
type RunRequest struct {
	AnalysisWindow  model.DateRange  `json:"analysis_window"`
	ReferenceWindow model.DateRange  `json:"reference_window"`
	Records         []RecordInput    `json:"records,omitempty"` // 为空时从数据库读取
	Overrides       *ConfigOverrides `json:"overrides,omitempty"`
	IncludeTables   bool             `json:"include_tables,omitempty"` // 响应附带明细表
	Persist         bool             `json:"persist,omitempty"`        // 持久化输出表
}

// RunResponse 分析运行响应
type RunResponse struct {
	Success             bool                      `json:"success"`
	RunID               string                    `json:"run_id,omitempty"`
	Summary             []analysis.SummaryRow     `json:"summary,omitempty"`
	RoleBreakdown       []analysis.BreakdownEntry `json:"role_breakdown,omitempty"`
	EmploymentBreakdown []analysis.BreakdownEntry `json:"employment_breakdown,omitempty"`
	Anomalies           []analysis.Anomaly        `json:"anomalies,omitempty"`
	HeatmapRows         []analysis.HeatmapRow     `json:"heatmap,omitempty"`
	NeedRows            []analysis.NeedRow        `json:"needs,omitempty"`
	ShortageRows        []analysis.ShortageCell   `json:"shortages,omitempty"`
	Persisted           bool                      `json:"persisted"`
	Duration            string                    `json:"duration"`
}

// Run 执行缺口分析
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	cfg, appErr := h.buildConfig(&req)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	pipeline, err := analysis.NewPipeline(cfg)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	records, appErr := h.loadRecords(r, &req)
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	result, err := pipeline.Run(records)
	if err != nil {
		metrics.RecordAnalysisRun("error", 0)
		respondError(w, toAppError(err))
		return
	}

	h.recordMetrics(result)

	persisted := false
	if req.Persist && h.results != nil {
		if err := h.results.SaveRun(r.Context(), result); err != nil {
			logger.WithError(err).Str("run_id", result.RunID.String()).Msg("持久化分析结果失败")
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "持久化分析结果失败"))
			return
		}
		persisted = true
	}

	resp := &RunResponse{
		Success:             true,
		RunID:               result.RunID.String(),
		Summary:             result.Summary(),
		RoleBreakdown:       result.Breakdown(model.ScopeRole),
		EmploymentBreakdown: result.Breakdown(model.ScopeEmployment),
		Anomalies:           result.Anomalies,
		Persisted:           persisted,
		Duration:            result.Duration.String(),
	}
	if req.IncludeTables {
		resp.HeatmapRows = result.HeatmapRows()
		resp.NeedRows = result.NeedRows()
		resp.ShortageRows = result.ShortageRows()
	}

	respondJSON(w, http.StatusOK, resp)
}

// ScenarioInput 场景输入
type ScenarioInput struct {
	Name      string           `json:"name"`
	Overrides *ConfigOverrides `json:"overrides,omitempty"`
}

// ScenariosRequest 多场景比较请求
type ScenariosRequest struct {
	AnalysisWindow  model.DateRange `json:"analysis_window"`
	ReferenceWindow model.DateRange `json:"reference_window"`
	Records         []RecordInput   `json:"records,omitempty"`
	Scenarios       []ScenarioInput `json:"scenarios"`
}

// ScenarioOutput 单场景输出
type ScenarioOutput struct {
	Name      string                `json:"name"`
	Success   bool                  `json:"success"`
	Error     string                `json:"error,omitempty"`
	RunID     string                `json:"run_id,omitempty"`
	Summary   []analysis.SummaryRow `json:"summary,omitempty"`
	Anomalies int                   `json:"anomaly_count"`
}

// ScenariosResponse 多场景比较响应
type ScenariosResponse struct {
	Success   bool             `json:"success"`
	Scenarios []ScenarioOutput `json:"scenarios"`
}

// Scenarios 并行运行多个统计方法场景并比较结果
func (h *AnalysisHandler) Scenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ScenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if len(req.Scenarios) == 0 {
		respondError(w, errors.InvalidInput("scenarios", "至少需要一个场景"))
		return
	}

	runReq := RunRequest{AnalysisWindow: req.AnalysisWindow, ReferenceWindow: req.ReferenceWindow}
	records, appErr := h.loadRecords(r, &RunRequest{
		AnalysisWindow:  req.AnalysisWindow,
		ReferenceWindow: req.ReferenceWindow,
		Records:         req.Records,
	})
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	scenarios := make([]analysis.Scenario, 0, len(req.Scenarios))
	for _, sc := range req.Scenarios {
		runReq.Overrides = sc.Overrides
		cfg, appErr := h.buildConfig(&runReq)
		if appErr != nil {
			respondError(w, appErr.WithField("scenario", sc.Name))
			return
		}
		scenarios = append(scenarios, analysis.Scenario{Name: sc.Name, Config: cfg})
	}

	runner := analysis.NewScenarioRunner(h.cfg.Analysis.ScenarioWorkers)
	results := runner.RunBatch(r.Context(), scenarios, records)

	resp := &ScenariosResponse{Success: true}
	for _, res := range results {
		out := ScenarioOutput{Name: res.Name}
		if res.Err != nil {
			out.Error = res.Err.Error()
			metrics.RecordAnalysisRun("error", 0)
		} else {
			out.Success = true
			out.RunID = res.Result.RunID.String()
			out.Summary = res.Result.Summary()
			out.Anomalies = len(res.Result.Anomalies)
			h.recordMetrics(res.Result)
		}
		resp.Scenarios = append(resp.Scenarios, out)
	}

	respondJSON(w, http.StatusOK, resp)
}

// buildConfig 由服务默认配置加请求覆盖项构造引擎配置
func (h *AnalysisHandler) buildConfig(req *RunRequest) (analysis.Config, *errors.AppError) {
	cfg := h.cfg.Analysis.ToAnalysisConfig()
	cfg.AnalysisWindow = req.AnalysisWindow
	cfg.ReferenceWindow = req.ReferenceWindow

	if o := req.Overrides; o != nil {
		if o.SlotDurationMinutes != nil {
			cfg.SlotDurationMinutes = *o.SlotDurationMinutes
		}
		if o.StatisticMethod != nil {
			cfg.Statistic = analysis.StatisticMethod(*o.StatisticMethod)
		}
		if o.PercentileValue != nil {
			cfg.PercentileValue = *o.PercentileValue
		}
		if o.ByWeekday != nil {
			cfg.ByWeekday = *o.ByWeekday
		}
		if o.NormalizationBaseDays != nil {
			cfg.NormalizationBaseDays = *o.NormalizationBaseDays
		}
		if o.NormalizationToleranceDays != nil {
			cfg.NormalizationToleranceDays = *o.NormalizationToleranceDays
		}
		if o.MaxShortagePerDayHours != nil {
			cfg.MaxShortagePerDayHours = *o.MaxShortagePerDayHours
		}
		if o.NeedCeilingPerSlot != nil {
			cfg.NeedCeilingPerSlot = *o.NeedCeilingPerSlot
		}
		if o.BaselineFallback != nil {
			cfg.BaselineFallback = analysis.BaselineFallback(*o.BaselineFallback)
		}
		if o.RecordPolicy != nil {
			cfg.RecordPolicy = model.RecordPolicy(*o.RecordPolicy)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, toAppError(err)
	}
	return cfg, nil
}

// loadRecords 获取考勤记录：请求内联优先，否则从数据库读取
func (h *AnalysisHandler) loadRecords(r *http.Request, req *RunRequest) ([]*model.AttendanceRecord, *errors.AppError) {
	if len(req.Records) > 0 {
		records := make([]*model.AttendanceRecord, 0, len(req.Records))
		for _, in := range req.Records {
			ts, err := time.Parse(time.RFC3339, in.Timestamp)
			if err != nil {
				return nil, errors.InvalidInput("timestamp", "应为 RFC3339 格式: "+in.Timestamp)
			}
			records = append(records, &model.AttendanceRecord{
				StaffID:        in.StaffID,
				Role:           in.Role,
				EmploymentType: in.EmploymentType,
				Timestamp:      ts,
				SlotUnits:      in.SlotUnits,
			})
		}
		metrics.GetRegistry().GetCounter("quekou_attendance_records_total").Add(float64(len(records)), "inline")
		return records, nil
	}

	if h.attendance == nil {
		return nil, errors.New(errors.CodeInvalidInput, "请求未携带考勤记录且服务未配置数据库")
	}

	// 读取覆盖参考期与分析期的全部记录
	start := req.ReferenceWindow.StartDate
	if req.AnalysisWindow.StartDate < start {
		start = req.AnalysisWindow.StartDate
	}
	end := req.ReferenceWindow.EndDate
	if req.AnalysisWindow.EndDate > end {
		end = req.AnalysisWindow.EndDate
	}

	records, err := h.attendance.ListByWindow(r.Context(),
		repository.DefaultAttendanceFilter().WithDateRange(start, end))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "读取考勤记录失败")
	}
	metrics.GetRegistry().GetCounter("quekou_attendance_records_total").Add(float64(len(records)), "store")
	return records, nil
}

// recordMetrics 上报一次运行的监控指标
func (h *AnalysisHandler) recordMetrics(result *analysis.Result) {
	metrics.RecordAnalysisRun("success", result.Duration)
	for _, a := range result.Anomalies {
		metrics.RecordAnomaly(string(a.Kind), string(a.Scope))
	}
	for scope, outcome := range result.Reconciles {
		metrics.RecordReconciliation(string(scope), outcome.Reconciled)
	}
	for _, row := range result.Summary() {
		metrics.RecordShortage(string(row.Scope), row.TotalShortageHours)
	}
}

// toAppError 将引擎错误转换为 AppError
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	} else {
		appErr = errors.Wrap(err, errors.CodeInternal, "分析失败")
	}
	return appErr
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
