package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/azusa152/Folio/internal/model"
)

// SQLiteRecorder appends audit rows to a SQLite database, separate from the
// watch store so dashboard queries never contend with cooldown writes.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Recorder = (*SQLiteRecorder)(nil)

// NewSQLiteRecorder opens (or creates) the audit database and migrates it.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL mode for concurrent dashboard reads while cycles write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_logs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			ticker    TEXT NOT NULL,
			category  TEXT NOT NULL,
			signal    TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			notes     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_ts ON scan_logs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS timing_logs (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id              TEXT NOT NULL,
			timestamp             INTEGER NOT NULL,
			pair                  TEXT NOT NULL,
			current_rate          REAL,
			lookback_high         REAL,
			lookback_days         INTEGER,
			consecutive_increases INTEGER,
			is_recent_high        INTEGER,
			should_alert          INTEGER,
			recommendation        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timing_ts ON timing_logs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS fired_alerts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			watch_id  INTEGER NOT NULL,
			pair      TEXT NOT NULL,
			rate      REAL,
			reasoning TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fired_ts ON fired_alerts(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(ctx context.Context, cycleID string, res model.ScanResult) error {
	notes, err := json.Marshal(res.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.ExecContext(ctx, `INSERT INTO scan_logs
		(cycle_id, timestamp, ticker, category, signal, sentiment, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycleID, time.Now().Unix(), res.Ticker, res.Category, res.Signal, res.Sentiment, string(notes))
	if err != nil {
		return fmt.Errorf("record scan %s: %w", res.Ticker, err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordTiming(ctx context.Context, cycleID string, v model.TimingVerdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.ExecContext(ctx, `INSERT INTO timing_logs
		(cycle_id, timestamp, pair, current_rate, lookback_high, lookback_days,
		 consecutive_increases, is_recent_high, should_alert, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycleID, time.Now().Unix(), v.Pair(), v.CurrentRate, v.LookbackHigh, v.LookbackDays,
		v.ConsecutiveIncreases, boolInt(v.IsRecentHigh), boolInt(v.ShouldAlert), v.Recommendation)
	if err != nil {
		return fmt.Errorf("record timing %s: %w", v.Pair(), err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordFired(ctx context.Context, cycleID string, f model.FiredAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.ExecContext(ctx, `INSERT INTO fired_alerts
		(cycle_id, timestamp, watch_id, pair, rate, reasoning)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cycleID, f.SentAt.Unix(), f.WatchID, f.Pair, f.Verdict.CurrentRate, f.Verdict.Reasoning)
	if err != nil {
		return fmt.Errorf("record fired alert %s: %w", f.Pair, err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error { return r.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
