// Package store persists price bars in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vnmarket/internal/provider"
)

// Store keeps bars keyed by (symbol, interval, time).
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// pragmas are applied by the driver to every pooled connection.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("bar store opened: %s", path)
	return s, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return "file:" + path + "?" + pragmas
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_interval ON bars(interval, symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:30], err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const upsertSQL = `INSERT INTO bars (symbol, interval, ts, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(symbol, interval, ts) DO UPDATE SET
		open = excluded.open, high = excluded.high, low = excluded.low,
		close = excluded.close, volume = excluded.volume`

// Upsert inserts bars, overwriting stored bars with the same time.
func (s *Store) Upsert(ctx context.Context, symbol string, iv provider.Interval, bars []provider.Bar) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		return insert(ctx, tx, symbol, iv, bars)
	})
}

// Replace drops every stored bar of symbol at interval iv and stores bars
// in their place, in one transaction.
func (s *Store) Replace(ctx context.Context, symbol string, iv provider.Interval, bars []provider.Bar) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE symbol = ? AND interval = ?`, symbol, string(iv)); err != nil {
			return fmt.Errorf("delete %s: %w", symbol, err)
		}
		return insert(ctx, tx, symbol, iv, bars)
	})
}

func (s *Store) write(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, symbol string, iv provider.Interval, bars []provider.Bar) error {
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, string(iv), b.Time.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert %s %s: %w", symbol, b.Time.Format(time.DateTime), err)
		}
	}
	return nil
}

// Load returns the bars of symbol with from <= time <= to in chronological
// order. A zero from or to leaves that side open.
func (s *Store) Load(ctx context.Context, symbol string, iv provider.Interval, from, to time.Time) ([]provider.Bar, error) {
	lo, hi := int64(-1<<62), int64(1<<62)
	if !from.IsZero() {
		lo = from.Unix()
	}
	if !to.IsZero() {
		hi = to.Unix()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts`, symbol, string(iv), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []provider.Bar
	for rows.Next() {
		var (
			b  provider.Bar
			ts int64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = time.Unix(ts, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// Latest returns the most recent stored bar of symbol. ok is false when
// nothing is stored.
func (s *Store) Latest(ctx context.Context, symbol string, iv provider.Interval) (b provider.Bar, ok bool, err error) {
	var ts int64
	err = s.db.QueryRowContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND interval = ? ORDER BY ts DESC LIMIT 1`, symbol, string(iv)).
		Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
	if errors.Is(err, sql.ErrNoRows) {
		return provider.Bar{}, false, nil
	}
	if err != nil {
		return provider.Bar{}, false, fmt.Errorf("latest bar %s: %w", symbol, err)
	}
	b.Time = time.Unix(ts, 0).UTC()
	return b, true, nil
}

// Symbols lists the symbols with stored bars at interval iv, sorted.
func (s *Store) Symbols(ctx context.Context, iv provider.Interval) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars WHERE interval = ? ORDER BY symbol`, string(iv))
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}
