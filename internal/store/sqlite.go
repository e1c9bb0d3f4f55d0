package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Backend using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Backend = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed session backend.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		active_intent TEXT NOT NULL DEFAULT '',
		step TEXT NOT NULL DEFAULT '',
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		slots_json TEXT NOT NULL,
		history_json TEXT NOT NULL,
		turns INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load implements Backend.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, active_intent, step, failed_attempts, slots_json, history_json,
		       version, created_at, updated_at
		FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var sess domain.Session
	var intent, step, slotsJSON, historyJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID, &intent, &step, &sess.FailedAttempts, &slotsJSON, &historyJSON,
		&sess.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.ActiveIntent = domain.Intent(intent)
	sess.Step = domain.Step(step)
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if err := json.Unmarshal([]byte(slotsJSON), &sess.Slots); err != nil {
		return nil, fmt.Errorf("decode slots for %s: %w", id, err)
	}
	if sess.Slots == nil {
		sess.Slots = domain.Slots{}
	}
	if err := json.Unmarshal([]byte(historyJSON), &sess.History); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", id, err)
	}

	return &sess, nil
}

// Save implements Backend. A zero Version inserts; otherwise the row is
// updated only when its version still matches.
func (s *SQLiteStore) Save(ctx context.Context, sess *domain.Session) error {
	slotsJSON, err := json.Marshal(sess.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	history := sess.History
	if history == nil {
		history = []domain.Turn{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	next := sess.Version + 1
	err = shared.RetryOnBusy(ctx, busyRetries, busyBaseDelay, "save session", func() error {
		var res sql.Result
		var execErr error
		if sess.Version == 0 {
			res, execErr = s.db.ExecContext(ctx, `
				INSERT INTO sessions (id, active_intent, step, failed_attempts, slots_json,
					history_json, turns, version, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`,
				sess.ID, string(sess.ActiveIntent), string(sess.Step), sess.FailedAttempts,
				string(slotsJSON), string(historyJSON), len(history), next,
				sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
			)
		} else {
			res, execErr = s.db.ExecContext(ctx, `
				UPDATE sessions SET active_intent = ?, step = ?, failed_attempts = ?,
					slots_json = ?, history_json = ?, turns = ?, version = ?, updated_at = ?
				WHERE id = ? AND version = ?`,
				string(sess.ActiveIntent), string(sess.Step), sess.FailedAttempts,
				string(slotsJSON), string(historyJSON), len(history), next,
				sess.UpdatedAt.UnixMilli(), sess.ID, sess.Version,
			)
		}
		if execErr != nil {
			return execErr
		}
		rows, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return fmt.Errorf("get rows affected: %w", rowsErr)
		}
		if rows == 0 {
			return ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}

	sess.Version = next
	return nil
}

// Summary implements Backend.
func (s *SQLiteStore) Summary(ctx context.Context, activeSince time.Time) (Summary, error) {
	sum := Summary{IntentDistribution: map[string]int{}}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN updated_at >= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(turns), 0)
		FROM sessions`, activeSince.UnixMilli())
	if err := row.Scan(&sum.TotalSessions, &sum.ActiveSessions, &sum.TotalInteractions); err != nil {
		return Summary{}, fmt.Errorf("scan session summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT active_intent, COUNT(*) FROM sessions GROUP BY active_intent`)
	if err != nil {
		return Summary{}, fmt.Errorf("query intent distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var intent string
		var n int
		if err := rows.Scan(&intent, &n); err != nil {
			return Summary{}, fmt.Errorf("scan intent distribution row: %w", err)
		}
		sum.IntentDistribution[intentLabel(domain.Intent(intent))] += n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate intent distribution: %w", err)
	}
	return sum, nil
}

// DeleteIdle implements Backend.
func (s *SQLiteStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := shared.RetryOnBusy(ctx, busyRetries, busyBaseDelay, "delete idle sessions", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup idle sessions: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
