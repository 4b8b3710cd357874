package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/oppilot/oppilot/pkg/dispatch"
)

// Entry is one journaled dispatch.
type Entry struct {
	// ID is the dispatch identifier.
	ID string `json:"id"`

	// Time is when the dispatch started.
	Time time.Time `json:"time"`

	// Task is the free-text task, empty for message-based requests.
	Task string `json:"task,omitempty"`

	// Category is the resolved task category.
	Category string `json:"category,omitempty"`

	// Reason explains how the model was chosen.
	Reason string `json:"reason"`

	// Model is the serving model as "provider/model", empty on failure.
	Model string `json:"model,omitempty"`

	// Success reports whether any candidate served the request.
	Success bool `json:"success"`

	// LatencyMs is the successful attempt's latency.
	LatencyMs float64 `json:"latency_ms,omitempty"`

	// Attempts is the ordered attempt log.
	Attempts []dispatch.Attempt `json:"attempts"`
}

// Config configures the journal.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger receives write warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Journal appends dispatch outcomes to SQLite and serves history queries.
// It implements dispatch.Journal.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	insertStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// Open opens (creating if necessary) the journal database.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	j := &Journal{db: db, logger: cfg.Logger}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	if err := j.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal statements: %w", err)
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		dispatched_at INTEGER NOT NULL,
		task TEXT,
		category TEXT,
		reason TEXT NOT NULL,
		model TEXT,
		success INTEGER NOT NULL,
		latency_ms REAL,
		attempts TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispatched_at ON dispatches(dispatched_at);
	CREATE INDEX IF NOT EXISTS idx_model ON dispatches(model);
	`

	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) prepareStatements() error {
	var err error

	j.insertStmt, err = j.db.Prepare(`
		INSERT INTO dispatches (id, dispatched_at, task, category, reason, model, success, latency_ms, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	j.pruneStmt, err = j.db.Prepare(`
		DELETE FROM dispatches WHERE dispatched_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// RecordDispatch implements dispatch.Journal. Write failures are logged
// and swallowed; the journal must never fail the dispatch path.
func (j *Journal) RecordDispatch(ctx context.Context, rec dispatch.JournalRecord) {
	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		j.logger.Warn("failed to marshal attempt log", "dispatch_id", rec.ID, "error", err)
		attempts = []byte("[]")
	}

	model := ""
	if rec.Model.Provider != "" {
		model = rec.Model.String()
	}

	_, err = j.insertStmt.ExecContext(ctx,
		rec.ID,
		rec.Time.UnixMilli(),
		rec.Task,
		string(rec.Category),
		string(rec.Reason),
		model,
		boolToInt(rec.Success),
		rec.LatencyMs,
		string(attempts),
	)
	if err != nil {
		j.logger.Warn("failed to journal dispatch",
			"dispatch_id", rec.ID,
			"error", err)
	}
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, dispatched_at, task, category, reason, model, success, latency_ms, attempts
		FROM dispatches
		ORDER BY dispatched_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			ts          int64
			success     int
			attemptJSON string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Task, &e.Category, &e.Reason, &e.Model, &success, &e.LatencyMs, &attemptJSON); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Time = time.UnixMilli(ts).UTC()
		e.Success = success != 0
		if err := json.Unmarshal([]byte(attemptJSON), &e.Attempts); err != nil {
			j.logger.Warn("corrupt attempt log in journal", "dispatch_id", e.ID, "error", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes journal contents for status reporting.
type Stats struct {
	// Total is the number of journaled dispatches.
	Total int `json:"total"`

	// Succeeded is the number of successful dispatches.
	Succeeded int `json:"succeeded"`

	// ByModel counts successful dispatches per serving model.
	ByModel map[string]int `json:"by_model"`
}

// Stats aggregates dispatch counts.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByModel: make(map[string]int)}

	row := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0) FROM dispatches
	`)
	if err := row.Scan(&stats.Total, &stats.Succeeded); err != nil {
		return Stats{}, fmt.Errorf("failed to query journal stats: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT model, COUNT(*) FROM dispatches
		WHERE success = 1 AND model != ''
		GROUP BY model
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query per-model stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model string
		var count int
		if err := rows.Scan(&model, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan per-model stats: %w", err)
		}
		stats.ByModel[model] = count
	}
	return stats, rows.Err()
}

// Prune deletes entries older than the retention window and returns how
// many rows were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.pruneStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.insertStmt != nil {
		j.insertStmt.Close()
	}
	if j.pruneStmt != nil {
		j.pruneStmt.Close()
	}
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
