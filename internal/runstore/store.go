package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"revoice/internal/config"
	"revoice/internal/manifest"
)

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database at the configured path.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.DatabasePath
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun inserts a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, runID string, totalSegments int, modelID, targetLanguage string) (*Run, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, status, model_id, target_language, total_segments, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		StatusRunning,
		modelID,
		targetLanguage,
		totalSegments,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, runID)
}

// RecordResult stores one terminal segment record. The first record for a
// segment wins; later arrivals for the same segment are ignored, matching
// the in-memory assembler.
func (s *Store) RecordResult(ctx context.Context, runID string, rec manifest.Record) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO segment_results (
            run_id, segment_id, ordinal_index, speaker_id, success,
            audio_path, failure_kind, reason, elapsed_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, segment_id) DO NOTHING`,
		runID,
		rec.SegmentID,
		rec.OrdinalIndex,
		rec.SpeakerID,
		boolToInt(rec.Success),
		nullableString(rec.AudioPath),
		nullableString(string(rec.FailureKind)),
		nullableString(rec.Reason),
		rec.Elapsed,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record segment result: %w", err)
	}
	return nil
}

// ReplaceResults swaps a run's stored records for the given set, used after
// publishing rewrites artifact paths.
func (s *Store) ReplaceResults(ctx context.Context, runID string, records []manifest.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear run results: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO segment_results (
                run_id, segment_id, ordinal_index, speaker_id, success,
                audio_path, failure_kind, reason, elapsed_ms, recorded_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			rec.SegmentID,
			rec.OrdinalIndex,
			rec.SpeakerID,
			boolToInt(rec.Success),
			nullableString(rec.AudioPath),
			nullableString(string(rec.FailureKind)),
			nullableString(rec.Reason),
			rec.Elapsed,
			now,
		); err != nil {
			return fmt.Errorf("insert result %s: %w", rec.SegmentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// FinishRun marks a run terminal with its final status, recomputing the
// success and failure counts from the stored segment results.
func (s *Store) FinishRun(ctx context.Context, runID string, status Status, manifestPath, errorMessage string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET status = ?, manifest_path = ?, error_message = ?, finished_at = ?,
             succeeded = (SELECT COUNT(1) FROM segment_results WHERE segment_results.run_id = runs.run_id AND success = 1),
             failed = (SELECT COUNT(1) FROM segment_results WHERE segment_results.run_id = runs.run_id AND success = 0)
         WHERE run_id = ?`,
		status,
		nullableString(manifestPath),
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: no run %q", runID)
	}
	return nil
}

// GetRun fetches a run by identifier, or nil when no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recently started run, or nil when the store is
// empty.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. A limit <= 0 returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SegmentResults returns a run's stored records in ordinal order.
func (s *Store) SegmentResults(ctx context.Context, runID string) ([]manifest.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT segment_id, ordinal_index, speaker_id, success, audio_path, failure_kind, reason, elapsed_ms
         FROM segment_results WHERE run_id = ? ORDER BY ordinal_index`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query segment results: %w", err)
	}
	defer rows.Close()

	var records []manifest.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountResults returns the live success and failure counts for a run.
func (s *Store) CountResults(ctx context.Context, runID string) (succeeded, failed int, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(success), 0), COALESCE(SUM(1 - success), 0)
         FROM segment_results WHERE run_id = ?`,
		runID,
	)
	if err := row.Scan(&succeeded, &failed); err != nil {
		return 0, 0, fmt.Errorf("count results: %w", err)
	}
	return succeeded, failed, nil
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// DeleteRun removes one run and its segment results.
func (s *Store) DeleteRun(ctx context.Context, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes every finished run, keeping any still running.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM runs WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal runs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all runs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

const runColumns = "run_id, status, model_id, target_language, total_segments, succeeded, failed, manifest_path, error_message, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		runID       string
		statusStr   string
		modelID     string
		lang        string
		total       int
		succeeded   int
		failed      int
		manifestRaw sql.NullString
		errorRaw    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&runID,
		&statusStr,
		&modelID,
		&lang,
		&total,
		&succeeded,
		&failed,
		&manifestRaw,
		&errorRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	status, err := ParseStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	run := &Run{
		RunID:          runID,
		Status:         status,
		ModelID:        modelID,
		TargetLanguage: lang,
		TotalSegments:  total,
		Succeeded:      succeeded,
		Failed:         failed,
		ManifestPath:   manifestRaw.String,
		ErrorMessage:   errorRaw.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (manifest.Record, error) {
	var (
		segmentID  string
		ordinal    int
		speakerID  string
		successInt int
		audioRaw   sql.NullString
		kindRaw    sql.NullString
		reasonRaw  sql.NullString
		elapsed    int64
	)
	if err := scanner.Scan(
		&segmentID,
		&ordinal,
		&speakerID,
		&successInt,
		&audioRaw,
		&kindRaw,
		&reasonRaw,
		&elapsed,
	); err != nil {
		return manifest.Record{}, err
	}

	rec := manifest.Record{
		SegmentID:    segmentID,
		OrdinalIndex: ordinal,
		SpeakerID:    speakerID,
		Success:      successInt != 0,
		AudioPath:    audioRaw.String,
		Reason:       reasonRaw.String,
		Elapsed:      elapsed,
	}
	if kindRaw.Valid && kindRaw.String != "" {
		kind, err := manifest.ParseFailureKind(kindRaw.String)
		if err != nil {
			return manifest.Record{}, fmt.Errorf("segment %s: %w", segmentID, err)
		}
		rec.FailureKind = kind
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
