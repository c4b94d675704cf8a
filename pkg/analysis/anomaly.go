package analysis

import (
	"github.com/quekou/quekou/pkg/logger"
	"github.com/quekou/quekou/pkg/model"
)

// AnomalyKind 异常事件类型
type AnomalyKind string

const (
	AnomalyNeedCeilingExceeded AnomalyKind = "need_ceiling_exceeded" // 需求基准超过上限被钳制
	AnomalyBaselineFallback    AnomalyKind = "baseline_fallback"     // 参考期数据不足，使用全局回退
	AnomalyDailyShortageCapped AnomalyKind = "daily_shortage_capped" // 单日缺口超限被等比缩减
	AnomalyPeriodNormalized    AnomalyKind = "period_normalized"     // 分析期长度偏离基准被归一化
)

// Anomaly 异常事件
//
// 封顶、钳制、归一化属于预期内的策略性调整，就地处理并记录事件，
// 不作为错误抛出；报表消费方据此可以追溯每个被调整的数值。
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Scope   model.Scope `json:"scope"`
	Date    string      `json:"date,omitempty"`
	Pattern string      `json:"pattern,omitempty"` // 时段模式描述，如 "slot=12 weekday=Mon"
	Before  float64     `json:"before"`
	After   float64     `json:"after"`
	Factor  float64     `json:"factor,omitempty"`
}

// AnomalyRecorder 异常事件收集器
//
// 单次运行内串行使用，不做并发保护。
type AnomalyRecorder struct {
	runID     string
	log       *logger.AnalysisLogger
	anomalies []Anomaly
}

// NewAnomalyRecorder 创建异常事件收集器
//
// log 可以为 nil（只收集不输出日志，测试时常用）。
func NewAnomalyRecorder(runID string, log *logger.AnalysisLogger) *AnomalyRecorder {
	return &AnomalyRecorder{runID: runID, log: log}
}

// Record 记录一个异常事件
func (r *AnomalyRecorder) Record(a Anomaly) {
	r.anomalies = append(r.anomalies, a)
	if r.log != nil {
		r.log.Anomaly(r.runID, string(a.Kind), string(a.Scope), a.Date, a.Before, a.After, a.Factor)
	}
}

// Anomalies 返回收集到的全部事件
func (r *AnomalyRecorder) Anomalies() []Anomaly {
	return r.anomalies
}

// CountByKind 按类型统计事件数
func (r *AnomalyRecorder) CountByKind(kind AnomalyKind) int {
	n := 0
	for _, a := range r.anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
