package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/freeeve/policy-arena/internal/model"
)

// ResultRepo stores sweep rows.
type ResultRepo struct {
	db *sql.DB
}

// NewResultRepo creates a ResultRepo.
func NewResultRepo(db *sql.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveRows writes a batch of rows in one transaction. Re-running a cell
// overwrites its earlier rows.
func (r *ResultRepo) SaveRows(ctx context.Context, rows []model.SweepRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sweep_rows (sweep_id, cell, evaluated_level, baseline_level, game_index,
		                         evaluated_color, reason, plies, "values")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (sweep_id, cell, game_index) DO UPDATE SET
		     evaluated_color = EXCLUDED.evaluated_color,
		     reason = EXCLUDED.reason,
		     plies = EXCLUDED.plies,
		     "values" = EXCLUDED."values"`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		values := row.Values
		if values == nil {
			values = []float64{}
		}
		if _, err := stmt.ExecContext(ctx, row.SweepID, row.Cell, row.EvaluatedLevel, row.BaselineLevel,
			row.GameIndex, row.EvaluatedColor, row.Reason, row.Plies, pq.Array(values)); err != nil {
			return fmt.Errorf("insert row %s/%d: %w", row.Cell, row.GameIndex, err)
		}
	}
	return tx.Commit()
}

// ListRows returns the rows of a sweep in cell and game order. An empty cell
// lists every cell of the sweep.
func (r *ResultRepo) ListRows(ctx context.Context, sweepID, cell string) ([]model.SweepRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sweep_id, cell, evaluated_level, baseline_level, game_index,
		        evaluated_color, reason, plies, "values"
		 FROM sweep_rows
		 WHERE sweep_id = $1 AND ($2 = '' OR cell = $2)
		 ORDER BY cell, game_index`, sweepID, cell)
	if err != nil {
		return nil, fmt.Errorf("list sweep rows: %w", err)
	}
	defer rows.Close()

	var out []model.SweepRow
	for rows.Next() {
		var s model.SweepRow
		var values pq.Float64Array
		if err := rows.Scan(&s.SweepID, &s.Cell, &s.EvaluatedLevel, &s.BaselineLevel, &s.GameIndex,
			&s.EvaluatedColor, &s.Reason, &s.Plies, &values); err != nil {
			return nil, fmt.Errorf("scan sweep row: %w", err)
		}
		s.Values = []float64(values)
		out = append(out, s)
	}
	return out, rows.Err()
}
