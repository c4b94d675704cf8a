package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quekou/quekou/internal/database"
	"github.com/quekou/quekou/pkg/analysis"
	"github.com/quekou/quekou/pkg/model"
)

// ResultRepository 分析结果仓储
//
// 结果表在每次运行结束时整体写入：同一分析窗口的旧运行数据
// 先删除再插入，保证没有增量更新导致的陈旧数据。
type ResultRepository struct {
	db *database.DB
}

// NewResultRepository 创建结果仓储
func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveRun 在单个事务内持久化一次分析运行的全部输出表
func (r *ResultRepository) SaveRun(ctx context.Context, result *analysis.Result) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := r.replaceRun(ctx, tx, result); err != nil {
			return err
		}
		if err := r.insertHeatmap(ctx, tx, result); err != nil {
			return err
		}
		if err := r.insertNeeds(ctx, tx, result); err != nil {
			return err
		}
		if err := r.insertShortages(ctx, tx, result); err != nil {
			return err
		}
		return r.insertSummaries(ctx, tx, result)
	})
}

// replaceRun 删除同一分析窗口的历史运行并登记本次运行
func (r *ResultRepository) replaceRun(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	window := result.Config.AnalysisWindow

	rows, err := tx.QueryContext(ctx,
		`SELECT run_id FROM analysis_runs WHERE start_date = $1 AND end_date = $2`,
		window.StartDate, window.EndDate)
	if err != nil {
		return fmt.Errorf("查询历史运行失败: %w", err)
	}
	var stale []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("扫描历史运行失败: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("遍历历史运行失败: %w", err)
	}

	for _, id := range stale {
		for _, table := range []string{"heatmap_cells", "need_baselines", "shortage_cells", "shortage_summaries", "analysis_runs"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", table), id); err != nil {
				return fmt.Errorf("清理历史运行 %s 失败: %w", id, err)
			}
		}
	}

	configJSON, _ := json.Marshal(result.Config)
	anomaliesJSON, _ := json.Marshal(result.Anomalies)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, generated_at, start_date, end_date, config, anomalies, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, result.RunID, result.GeneratedAt, window.StartDate, window.EndDate,
		configJSON, anomaliesJSON, result.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("登记分析运行失败: %w", err)
	}
	return nil
}

// insertHeatmap 写入热力图表
func (r *ResultRepository) insertHeatmap(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO heatmap_cells (run_id, date, slot_index, scope, value, actual_staff_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("准备热力图写入失败: %w", err)
	}
	defer stmt.Close()

	for _, row := range result.HeatmapRows() {
		if _, err := stmt.ExecContext(ctx, result.RunID, row.Date, row.Slot, string(row.Scope), row.Value, row.ActualCount); err != nil {
			return fmt.Errorf("写入热力图单元格失败: %w", err)
		}
	}
	return nil
}

// insertNeeds 写入需求基准表
func (r *ResultRepository) insertNeeds(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO need_baselines (run_id, scope, value, slot_index, weekday, need_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("准备基准写入失败: %w", err)
	}
	defer stmt.Close()

	for _, row := range result.NeedRows() {
		if _, err := stmt.ExecContext(ctx, result.RunID, string(row.Scope), row.Value, row.Slot, row.Weekday, row.NeedValue); err != nil {
			return fmt.Errorf("写入需求基准失败: %w", err)
		}
	}
	return nil
}

// insertShortages 写入缺口明细表（封顶后的值）
func (r *ResultRepository) insertShortages(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shortage_cells (run_id, scope, date, slot_index, value, actual_staff_count, need_value, shortage_hours, excess_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("准备缺口明细写入失败: %w", err)
	}
	defer stmt.Close()

	for _, scope := range model.Scopes() {
		sr, ok := result.Scopes[scope]
		if !ok {
			continue
		}
		for _, c := range sr.Shortage.Cells {
			if _, err := stmt.ExecContext(ctx, result.RunID, string(scope), c.Date, c.Slot, c.Value,
				c.ActualCount, c.NeedValue, c.ShortageHours, c.ExcessHours); err != nil {
				return fmt.Errorf("写入缺口明细失败: %w", err)
			}
		}
	}
	return nil
}

// insertSummaries 写入汇总与对账元数据
func (r *ResultRepository) insertSummaries(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shortage_summaries (
			run_id, scope, total_shortage_hours, total_excess_hours,
			daily_average_shortage_hours, severity_band,
			normalized, normalization_factor, raw_total_shortage_hours,
			reconciled, correction_applied
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("准备汇总写入失败: %w", err)
	}
	defer stmt.Close()

	for _, row := range result.Summary() {
		if _, err := stmt.ExecContext(ctx, result.RunID, string(row.Scope),
			row.TotalShortageHours, row.TotalExcessHours,
			row.DailyAverageShortage, string(row.SeverityBand),
			row.Normalized, row.NormalizationFactor, row.RawTotalShortageHours,
			row.Reconciled, row.CorrectionApplied); err != nil {
			return fmt.Errorf("写入缺口汇总失败: %w", err)
		}
	}
	return nil
}

// GetSummary 读取指定运行的汇总表
func (r *ResultRepository) GetSummary(ctx context.Context, runID uuid.UUID) ([]analysis.SummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scope, total_shortage_hours, total_excess_hours,
			daily_average_shortage_hours, severity_band,
			normalized, normalization_factor, raw_total_shortage_hours,
			reconciled, correction_applied
		FROM shortage_summaries
		WHERE run_id = $1
		ORDER BY scope
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询缺口汇总失败: %w", err)
	}
	defer rows.Close()

	var summaries []analysis.SummaryRow
	for rows.Next() {
		var row analysis.SummaryRow
		var scope, band string
		if err := rows.Scan(&scope, &row.TotalShortageHours, &row.TotalExcessHours,
			&row.DailyAverageShortage, &band,
			&row.Normalized, &row.NormalizationFactor, &row.RawTotalShortageHours,
			&row.Reconciled, &row.CorrectionApplied); err != nil {
			return nil, fmt.Errorf("扫描缺口汇总失败: %w", err)
		}
		row.Scope = model.Scope(scope)
		row.SeverityBand = analysis.SeverityBand(band)
		summaries = append(summaries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历缺口汇总失败: %w", err)
	}
	return summaries, nil
}
