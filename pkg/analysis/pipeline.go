package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/logger"
	"github.com/quekou/quekou/pkg/model"
)

// ScopeResult 单个统计维度的完整结果
type ScopeResult struct {
	Scope      model.Scope
	Heatmap    *Heatmap
	Baseline   *Baseline
	Shortage   *ShortageResult
	Validation *ValidationResult

	// 对账后的各维度值缺口小时数（ALL 维度即为其自身总量）
	ReconciledTotals map[string]float64
}

// Result 一次分析运行的完整输出
//
// 运行内的所有派生数据由本结构独占，运行之间互不共享。
type Result struct {
	RunID       uuid.UUID                        `json:"run_id"`
	GeneratedAt time.Time                        `json:"generated_at"`
	Config      Config                           `json:"config"`
	Scopes      map[model.Scope]*ScopeResult     `json:"-"`
	Reconciles  map[model.Scope]ReconcileOutcome `json:"reconciliation"`
	Anomalies   []Anomaly                        `json:"anomalies"`
	Duration    time.Duration                    `json:"duration"`
}

// Pipeline 缺口分析流水线
//
// 每个阶段都是不可变输入到新输出的纯变换，单次运行内串行执行。
type Pipeline struct {
	cfg Config
	sm  *model.SlotModel
	log *logger.AnalysisLogger
}

// NewPipeline 创建流水线，配置在此一次性校验
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sm, err := model.NewSlotModel(cfg.SlotDurationMinutes)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg: cfg,
		sm:  sm,
		log: logger.NewAnalysisLogger(),
	}, nil
}

// Config 返回流水线配置
func (p *Pipeline) Config() Config {
	return p.cfg
}

// SlotModel 返回时段模型
func (p *Pipeline) SlotModel() *model.SlotModel {
	return p.sm
}

// Run 对一批考勤记录执行完整分析
//
// 全机构、按职种、按雇佣形态三个维度各自独立走完
// 热力图→基准→缺口→校验 流程，最后将分维度结果对账到全机构总量。
func (p *Pipeline) Run(records []*model.AttendanceRecord) (*Result, error) {
	started := time.Now()
	runID := uuid.New()
	rec := NewAnomalyRecorder(runID.String(), p.log)

	p.log.StartRun(runID.String(), len(records),
		p.cfg.AnalysisWindow.StartDate, p.cfg.AnalysisWindow.EndDate)

	result := &Result{
		RunID:       runID,
		GeneratedAt: started,
		Config:      p.cfg,
		Scopes:      make(map[model.Scope]*ScopeResult),
		Reconciles:  make(map[model.Scope]ReconcileOutcome),
	}

	for _, scope := range model.Scopes() {
		sr, err := p.runScope(scope, records, rec)
		if err != nil {
			return nil, err
		}
		result.Scopes[scope] = sr
	}

	// 分维度对账：职种、雇佣形态各自对齐到全机构总量
	allTotal := result.Scopes[model.ScopeAll].Validation.TotalShortageHours
	for _, scope := range []model.Scope{model.ScopeRole, model.ScopeEmployment} {
		sr := result.Scopes[scope]
		breakdown := p.normalizedValueTotals(sr)

		reconciled, outcome, err := ReconcileBreakdown(scope, allTotal, breakdown)
		if err != nil {
			if !errors.Is(err, errors.CodeReconciliationInfeasible) {
				return nil, err
			}
			// 不可行：返回未对账数据并显式标记，绝不输出负缺口
			logger.Warn().
				Str("run_id", runID.String()).
				Str("scope", string(scope)).
				Err(err).
				Msg("维度对账不可行，返回未对账数据")
		}
		sr.ReconciledTotals = reconciled
		result.Reconciles[scope] = outcome
	}
	allSR := result.Scopes[model.ScopeAll]
	allSR.ReconciledTotals = map[string]float64{model.DimensionAll: allTotal}
	result.Reconciles[model.ScopeAll] = ReconcileOutcome{Scope: model.ScopeAll, Reconciled: true}

	result.Anomalies = rec.Anomalies()
	result.Duration = time.Since(started)

	p.log.RunComplete(runID.String(), result.Duration,
		allTotal, string(allSR.Validation.Band))
	return result, nil
}

// runScope 执行单个维度的 热力图→基准→缺口→校验 流程
func (p *Pipeline) runScope(scope model.Scope, records []*model.AttendanceRecord, rec *AnomalyRecorder) (*ScopeResult, error) {
	heatmap, err := BuildHeatmap(records, scope, p.sm, p.cfg.RecordPolicy)
	if err != nil {
		return nil, err
	}

	baseline, err := EstimateBaseline(heatmap, p.cfg, rec)
	if err != nil {
		return nil, err
	}

	shortage, err := ComputeShortage(heatmap, baseline, p.cfg, p.sm)
	if err != nil {
		return nil, err
	}

	validation, err := NewValidator(p.cfg, rec).Apply(shortage)
	if err != nil {
		return nil, err
	}

	return &ScopeResult{
		Scope:      scope,
		Heatmap:    heatmap,
		Baseline:   baseline,
		Shortage:   shortage,
		Validation: validation,
	}, nil
}

// normalizedValueTotals 返回按维度值的缺口小时数，
// 与全机构总量同口径（应用相同的期长归一化系数）
func (p *Pipeline) normalizedValueTotals(sr *ScopeResult) map[string]float64 {
	totals := make(map[string]float64, len(sr.Shortage.ValueTotals))
	factor := sr.Validation.NormalizationFactor
	for value, hours := range sr.Shortage.ValueTotals {
		totals[value] = hours * factor
	}
	return totals
}
