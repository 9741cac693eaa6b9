package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"lfeval/internal/evaluator"
)

// TotalLossTask labels the combined loss row of a partition.
const TotalLossTask = "total"

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CheckpointKey returns a deterministic fingerprint for an evaluated checkpoint.
func CheckpointKey(info evaluator.CheckpointInfo) (string, error) {
	return FingerprintJSON(map[string]interface{}{
		"path":  info.Path,
		"epoch": info.Epoch,
	})
}

// UpsertCheckpoint inserts a checkpoint by its fingerprint key and returns its ID and key.
func UpsertCheckpoint(ctx context.Context, db *sql.DB, info evaluator.CheckpointInfo) (string, string, error) {
	if db == nil {
		return "", "", errors.New("duckdb: db is nil")
	}
	return upsertCheckpoint(ctx, db, info)
}

func upsertCheckpoint(ctx context.Context, q queryer, info evaluator.CheckpointInfo) (string, string, error) {
	if info.Path == "" {
		return "", "", errors.New("duckdb: checkpoint path is required")
	}
	key, err := CheckpointKey(info)
	if err != nil {
		return "", "", err
	}
	if _, err := q.ExecContext(
		ctx,
		`INSERT INTO checkpoints (checkpoint_id, checkpoint_key, path, epoch, created_at)
		 VALUES (?, ?, ?, ?, now())
		 ON CONFLICT (checkpoint_key) DO NOTHING`,
		uuid.NewString(),
		key,
		info.Path,
		info.Epoch,
	); err != nil {
		return "", "", fmt.Errorf("upsert checkpoint: %w", err)
	}
	id, err := lookupID(ctx, q, "checkpoints", "checkpoint_id", "checkpoint_key", key)
	if err != nil {
		return "", "", fmt.Errorf("lookup checkpoint id: %w", err)
	}
	return id, key, nil
}

// IngestRun stores a run summary with its losses and category scores in one transaction.
// A run already present is left untouched and reported with inserted == false.
func IngestRun(ctx context.Context, db *sql.DB, summary evaluator.Summary, config interface{}) (inserted bool, err error) {
	if db == nil {
		return false, errors.New("duckdb: db is nil")
	}
	if summary.RunID == "" {
		return false, errors.New("duckdb: run_id is required")
	}
	canonical, err := CanonicalJSON(config)
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin ingest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE run_id = ?", summary.RunID).Scan(&existing); err != nil {
		return false, fmt.Errorf("check run: %w", err)
	}
	if existing > 0 {
		return false, tx.Rollback()
	}

	checkpointID, _, err := upsertCheckpoint(ctx, tx, summary.Checkpoint)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO runs (
		  run_id, checkpoint_id, config_key, config, task, loss_policy, seed, batch_size, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		checkpointID,
		fingerprintBytes(canonical),
		string(canonical),
		summary.Task,
		summary.LossPolicy,
		summary.Seed,
		summary.BatchSize,
		summary.StartedAt,
		summary.FinishedAt,
	); err != nil {
		return false, fmt.Errorf("insert run: %w", err)
	}

	for _, part := range summary.Partitions {
		if err := insertLosses(ctx, tx, summary.RunID, part); err != nil {
			return false, err
		}
		if err := insertScores(ctx, tx, summary.RunID, part); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit ingest: %w", err)
	}
	return true, nil
}

func insertLosses(ctx context.Context, tx *sql.Tx, runID string, part evaluator.PartitionSummary) error {
	if part.Loss == nil {
		return nil
	}
	rows := map[string]float64{TotalLossTask: *part.Loss}
	for name, value := range part.TaskLosses {
		rows[name] = value
	}
	for _, name := range sortedKeys(rows) {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO partition_losses (run_id, partition_name, task, loss, examples) VALUES (?, ?, ?, ?, ?)`,
			runID, part.Name, name, rows[name], part.Examples,
		); err != nil {
			return fmt.Errorf("insert %s loss: %w", part.Name, err)
		}
	}
	return nil
}

func insertScores(ctx context.Context, tx *sql.Tx, runID string, part evaluator.PartitionSummary) error {
	if part.Results == nil {
		return nil
	}
	for _, e := range part.Results.Entries {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO category_scores (run_id, partition_name, question_type, task, correct, total, accuracy)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, part.Name, e.QuestionType, e.Task, e.Correct, e.Total, e.Accuracy,
		); err != nil {
			return fmt.Errorf("insert %s score: %w", part.Name, err)
		}
	}
	return nil
}

// HistoryPoint is the overall accuracy of one task in one run.
type HistoryPoint struct {
	RunID      string
	Epoch      int
	Correct    int
	Total      int
	Accuracy   float64
	FinishedAt time.Time
}

// AccuracyHistory aggregates every stored run's accuracy for a partition and task, oldest first.
func AccuracyHistory(ctx context.Context, db *sql.DB, partition, task string) ([]HistoryPoint, error) {
	if db == nil {
		return nil, errors.New("duckdb: db is nil")
	}
	rows, err := db.QueryContext(
		ctx,
		`SELECT run_id, epoch, CAST(SUM(correct) AS BIGINT), CAST(SUM(total) AS BIGINT), finished_at
		 FROM v_accuracy
		 WHERE partition_name = ? AND task = ?
		 GROUP BY run_id, epoch, finished_at
		 ORDER BY finished_at, run_id`,
		partition, task,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	var out []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		var correct, total int64
		if err := rows.Scan(&p.RunID, &p.Epoch, &correct, &total, &p.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		p.Correct, p.Total = int(correct), int(total)
		if total > 0 {
			p.Accuracy = float64(correct) / float64(total)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// lookupID fetches a single ID column value for a row keyed by keyColumn.
func lookupID(ctx context.Context, q queryer, table, idColumn, keyColumn, key string) (string, error) {
	query := fmt.Sprintf("SELECT CAST(%s AS VARCHAR) FROM %s WHERE %s = ?", idColumn, table, keyColumn)
	var id string
	if err := q.QueryRowContext(ctx, query, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
