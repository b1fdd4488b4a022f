package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/azusa152/Folio/internal/model"
)

// SQLite is the production Store backed by a single database file.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex // serializes writes; sqlite allows one writer
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and runs migrations. WAL mode
// keeps dashboard reads from blocking cycle writes.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watches (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			base                  TEXT NOT NULL,
			quote                 TEXT NOT NULL,
			lookback_days         INTEGER NOT NULL,
			consecutive_threshold INTEGER NOT NULL,
			cooldown_hours        INTEGER NOT NULL,
			is_active             INTEGER NOT NULL DEFAULT 1,
			last_alerted_at       INTEGER,
			UNIQUE(base, quote)
		)`,
		`CREATE TABLE IF NOT EXISTS instruments (
			ticker        TEXT PRIMARY KEY,
			category      TEXT NOT NULL,
			thesis        TEXT,
			tags          TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			is_active     INTEGER NOT NULL DEFAULT 1,
			last_signal   TEXT NOT NULL DEFAULT 'NORMAL'
		)`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker            TEXT NOT NULL,
			metric            TEXT NOT NULL,
			op                TEXT NOT NULL,
			threshold         REAL NOT NULL,
			cooldown_hours    INTEGER NOT NULL,
			is_active         INTEGER NOT NULL DEFAULT 1,
			last_triggered_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_ticker ON alert_rules(ticker)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func (s *SQLite) ActiveWatches(ctx context.Context) ([]model.Watch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, base, quote, lookback_days,
		consecutive_threshold, cooldown_hours, is_active, last_alerted_at
		FROM watches WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer rows.Close()

	var out []model.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row rowScanner) (model.Watch, error) {
	var (
		w        model.Watch
		active   int
		lastUnix sql.NullInt64
	)
	if err := row.Scan(&w.ID, &w.Base, &w.Quote, &w.LookbackDays,
		&w.ConsecutiveThreshold, &w.CooldownHours, &active, &lastUnix); err != nil {
		return model.Watch{}, fmt.Errorf("scan watch: %w", err)
	}
	w.IsActive = active != 0
	w.LastAlertedAt = timePtr(lastUnix)
	return w, nil
}

func (s *SQLite) GetWatch(ctx context.Context, id int64) (model.Watch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, base, quote, lookback_days,
		consecutive_threshold, cooldown_hours, is_active, last_alerted_at
		FROM watches WHERE id = ?`, id)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Watch{}, ErrNotFound
	}
	return w, err
}

func (s *SQLite) UpsertWatch(ctx context.Context, w model.Watch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO watches
		(base, quote, lookback_days, consecutive_threshold, cooldown_hours, is_active, last_alerted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(base, quote) DO UPDATE SET
			lookback_days = excluded.lookback_days,
			consecutive_threshold = excluded.consecutive_threshold,
			cooldown_hours = excluded.cooldown_hours,
			is_active = excluded.is_active`,
		w.Base, w.Quote, w.LookbackDays, w.ConsecutiveThreshold,
		w.CooldownHours, boolInt(w.IsActive), unixPtr(w.LastAlertedAt))
	if err != nil {
		return 0, fmt.Errorf("upsert watch %s: %w", w.Pair(), err)
	}
	// last_insert_rowid is not reliable across the update path of an
	// upsert, so resolve the id by pair.
	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM watches WHERE base = ? AND quote = ?`,
		w.Base, w.Quote).Scan(&id)
	return id, err
}

func (s *SQLite) MarkAlerted(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE watches SET last_alerted_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ActiveInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, category, thesis, tags,
		display_order, is_active, last_signal
		FROM instruments WHERE is_active = 1 ORDER BY display_order, ticker`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var (
			inst   model.Instrument
			thesis sql.NullString
			tags   sql.NullString
			active int
		)
		if err := rows.Scan(&inst.Ticker, &inst.Category, &thesis, &tags,
			&inst.DisplayOrder, &active, &inst.LastSignal); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		inst.Thesis = thesis.String
		inst.IsActive = active != 0
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &inst.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", inst.Ticker, err)
			}
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertInstrument(ctx context.Context, inst model.Instrument) error {
	tags, err := json.Marshal(inst.Tags)
	if err != nil {
		return fmt.Errorf("encode tags for %s: %w", inst.Ticker, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO instruments
		(ticker, category, thesis, tags, display_order, is_active, last_signal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			category = excluded.category,
			thesis = excluded.thesis,
			tags = excluded.tags,
			display_order = excluded.display_order,
			is_active = excluded.is_active`,
		inst.Ticker, inst.Category, inst.Thesis, string(tags),
		inst.DisplayOrder, boolInt(inst.IsActive), defaultSignal(inst.LastSignal))
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Ticker, err)
	}
	return nil
}

func (s *SQLite) UpdateSignal(ctx context.Context, ticker string, signal model.SignalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE instruments SET last_signal = ? WHERE ticker = ?`, signal, ticker)
	if err != nil {
		return fmt.Errorf("update signal %s: %w", ticker, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ActiveRules(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ticker, metric, op, threshold,
		cooldown_hours, is_active, last_triggered_at
		FROM alert_rules WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRule
	for rows.Next() {
		var (
			r        model.AlertRule
			active   int
			lastUnix sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.Metric, &r.Op, &r.Threshold,
			&r.CooldownHours, &active, &lastUnix); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.IsActive = active != 0
		r.LastTriggeredAt = timePtr(lastUnix)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) GetRule(ctx context.Context, id int64) (model.AlertRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, ticker, metric, op, threshold,
		cooldown_hours, is_active, last_triggered_at
		FROM alert_rules WHERE id = ?`, id)
	var (
		r        model.AlertRule
		active   int
		lastUnix sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Ticker, &r.Metric, &r.Op, &r.Threshold,
		&r.CooldownHours, &active, &lastUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AlertRule{}, ErrNotFound
	}
	if err != nil {
		return model.AlertRule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.IsActive = active != 0
	r.LastTriggeredAt = timePtr(lastUnix)
	return r, nil
}

func (s *SQLite) UpsertRule(ctx context.Context, r model.AlertRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID != 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE alert_rules SET ticker = ?, metric = ?,
			op = ?, threshold = ?, cooldown_hours = ?, is_active = ? WHERE id = ?`,
			r.Ticker, r.Metric, r.Op, r.Threshold, r.CooldownHours, boolInt(r.IsActive), r.ID)
		if err != nil {
			return 0, fmt.Errorf("update rule %d: %w", r.ID, err)
		}
		return r.ID, nil
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO alert_rules
		(ticker, metric, op, threshold, cooldown_hours, is_active, last_triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Ticker, r.Metric, r.Op, r.Threshold, r.CooldownHours,
		boolInt(r.IsActive), unixPtr(r.LastTriggeredAt))
	if err != nil {
		return 0, fmt.Errorf("insert rule for %s: %w", r.Ticker, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) MarkTriggered(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_rules SET last_triggered_at = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("mark triggered %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func defaultSignal(s model.SignalState) model.SignalState {
	if s == "" {
		return model.SignalNormal
	}
	return s
}
