package analysis

import (
	"math"
	"sort"

	"github.com/quekou/quekou/pkg/errors"
	"github.com/quekou/quekou/pkg/model"
)

// reconcileRelTol 对账后 Σ breakdown 与总量的相对容差
const reconcileRelTol = 1e-6

// ReconcileOutcome 对账结果元数据
type ReconcileOutcome struct {
	Scope             model.Scope `json:"scope"`
	Reconciled        bool        `json:"reconciled"`
	CorrectionApplied float64     `json:"correction_applied"` // 初始均匀修正量 Δ
	Pinned            int         `json:"pinned,omitempty"`   // 被钳制为零并重分配的条目数
}

// ReconcileBreakdown 将维度分解对齐到总量
//
// 各维度的缺口独立计算（各自的基准），其和不必然等于全机构总量。
// 采用加性均匀修正 Δ=(T-Σ)/n 而非乘性缩放，避免小值被不成比例地扭曲；
// 修正导致某条目为负时，将其钳制为零并把亏空重分配给其余正条目。
// 无法在不产生负值的前提下完成时，原样返回未对账数据并显式标记。
func ReconcileBreakdown(scope model.Scope, total float64, breakdown map[string]float64) (map[string]float64, ReconcileOutcome, error) {
	outcome := ReconcileOutcome{Scope: scope}

	adjusted := make(map[string]float64, len(breakdown))
	sum := 0.0
	for k, v := range breakdown {
		adjusted[k] = v
		sum += v
	}

	if len(breakdown) == 0 {
		if math.Abs(total) <= reconcileRelTol {
			outcome.Reconciled = true
			return adjusted, outcome, nil
		}
		return adjusted, outcome, errors.ReconciliationInfeasible(string(scope), "分解为空但总量非零")
	}

	if withinTolerance(sum, total) {
		outcome.Reconciled = true
		return adjusted, outcome, nil
	}

	outcome.CorrectionApplied = (total - sum) / float64(len(breakdown))

	// 活跃集：仍可接受修正的条目，按键排序保证结果确定性
	active := make([]string, 0, len(adjusted))
	for k := range adjusted {
		active = append(active, k)
	}
	sort.Strings(active)

	remaining := total - sum
	for math.Abs(remaining) > absTolerance(total) && len(active) > 0 {
		delta := remaining / float64(len(active))
		remaining = 0

		next := active[:0]
		for _, k := range active {
			nv := adjusted[k] + delta
			if nv < 0 {
				// 钳制为零，亏空留给剩余条目
				remaining += nv
				adjusted[k] = 0
				outcome.Pinned++
				continue
			}
			adjusted[k] = nv
			next = append(next, k)
		}
		active = next
	}

	finalSum := 0.0
	for _, v := range adjusted {
		finalSum += v
	}
	if !withinTolerance(finalSum, total) {
		// 退化情形：如唯一的非零条目小于所需修正量
		unadjusted := make(map[string]float64, len(breakdown))
		for k, v := range breakdown {
			unadjusted[k] = v
		}
		outcome = ReconcileOutcome{Scope: scope}
		return unadjusted, outcome, errors.ReconciliationInfeasible(string(scope), "重分配后仍无法对齐总量")
	}

	outcome.Reconciled = true
	return adjusted, outcome, nil
}

// withinTolerance 检查两数在相对容差内相等
func withinTolerance(a, b float64) bool {
	return math.Abs(a-b) <= absTolerance(b)
}

// absTolerance 将相对容差换算为绝对容差
func absTolerance(ref float64) float64 {
	return reconcileRelTol * math.Max(1, math.Abs(ref))
}
