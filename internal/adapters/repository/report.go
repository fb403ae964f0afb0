package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	run_id          TEXT    NOT NULL,
	archetype_a     TEXT    NOT NULL,
	archetype_b     TEXT    NOT NULL,
	size            INTEGER NOT NULL,
	observed_count  INTEGER NOT NULL,
	observed_win_a  INTEGER NOT NULL,
	count_a         INTEGER NOT NULL,
	count_b         INTEGER NOT NULL,
	expected_score  REAL    NOT NULL,
	PRIMARY KEY (run_id, archetype_a, archetype_b)
);
CREATE INDEX IF NOT EXISTS idx_predictions_observed ON predictions (run_id, observed_count DESC);
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
`

// Report orderings.
const (
	OrderObserved = "observed"
	OrderExpected = "expected"
	OrderRatio    = "ratio"
)

var orderClauses = map[string]string{
	OrderObserved: "observed_count DESC, expected_score DESC",
	OrderExpected: "expected_score DESC, observed_count DESC",
	OrderRatio:    "CAST(observed_count AS REAL) / expected_score DESC, observed_count DESC",
}

// ReportDB stores scored pairs for later querying.
type ReportDB struct {
	conn *sql.DB
}

// OpenReport opens (or creates) the SQLite database at path and applies the schema.
func OpenReport(path string) (*ReportDB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(reportSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply report schema: %w", err)
	}
	return &ReportDB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *ReportDB) Close() error {
	return db.conn.Close()
}

// SavePredictions replaces the rows of runID with recs in one transaction.
func (db *ReportDB) SavePredictions(ctx context.Context, runID, createdAt string, recs []model.PredictionRecord) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs (run_id, created_at) VALUES (?, ?)`, runID, createdAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO predictions
		(run_id, archetype_a, archetype_b, size, observed_count, observed_win_a, count_a, count_b, expected_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, runID, r.A, r.B, len(r.A)/2,
			r.ObservedCount, r.ObservedWinA, r.CountA, r.CountB, r.ExpectedScore); err != nil {
			return fmt.Errorf("insert %s;%s: %w", r.A, r.B, err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recently saved run id, or "" when there is none.
func (db *ReportDB) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// TopPairs returns up to limit pairs of runID ranked by order.
func (db *ReportDB) TopPairs(ctx context.Context, runID, order string, limit int) ([]model.PredictionRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	clause, ok := orderClauses[order]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, order)
	}
	rows, err := db.conn.QueryContext(ctx, `SELECT archetype_a, archetype_b, observed_count, observed_win_a,
		count_a, count_b, expected_score FROM predictions WHERE run_id = ?
		ORDER BY `+clause+` LIMIT ?`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query top pairs: %w", err)
	}
	defer rows.Close()

	var out []model.PredictionRecord
	for rows.Next() {
		var r model.PredictionRecord
		if err := rows.Scan(&r.A, &r.B, &r.ObservedCount, &r.ObservedWinA, &r.CountA, &r.CountB, &r.ExpectedScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
