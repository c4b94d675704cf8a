package analysis

import (
	"context"
	"sync"

	"github.com/quekou/quekou/pkg/model"
)

// Scenario 分析场景：同一批记录配不同的统计配置
type Scenario struct {
	Name   string `json:"name"`
	Config Config `json:"config"`
}

// ScenarioResult 单个场景的运行结果
type ScenarioResult struct {
	Index  int
	Name   string
	Result *Result
	Err    error
}

// ScenarioRunner 并行场景运行器
//
// 各场景的流水线完全独立（各自持有派生数据），可以安全并行。
type ScenarioRunner struct {
	workers int
}

// NewScenarioRunner 创建场景运行器
func NewScenarioRunner(workers int) *ScenarioRunner {
	if workers <= 0 {
		workers = 4
	}
	return &ScenarioRunner{workers: workers}
}

// RunBatch 并行运行一批场景
func (s *ScenarioRunner) RunBatch(ctx context.Context, scenarios []Scenario, records []*model.AttendanceRecord) []ScenarioResult {
	if len(scenarios) == 0 {
		return nil
	}

	resultChan := make(chan ScenarioResult, len(scenarios))
	jobChan := make(chan struct {
		index    int
		scenario Scenario
	}, len(scenarios))

	// 启动工作协程
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				select {
				case <-ctx.Done():
					resultChan <- ScenarioResult{Index: job.index, Name: job.scenario.Name, Err: ctx.Err()}
				default:
					result := s.runSingle(job.scenario, records)
					result.Index = job.index
					resultChan <- result
				}
			}
		}()
	}

	// 发送任务
	go func() {
		for i, sc := range scenarios {
			jobChan <- struct {
				index    int
				scenario Scenario
			}{i, sc}
		}
		close(jobChan)
	}()

	// 等待完成
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 收集结果
	results := make([]ScenarioResult, len(scenarios))
	for result := range resultChan {
		results[result.Index] = result
	}
	return results
}

// runSingle 运行单个场景
func (s *ScenarioRunner) runSingle(sc Scenario, records []*model.AttendanceRecord) ScenarioResult {
	result := ScenarioResult{Name: sc.Name}

	pipeline, err := NewPipeline(sc.Config)
	if err != nil {
		result.Err = err
		return result
	}

	result.Result, result.Err = pipeline.Run(records)
	return result
}
