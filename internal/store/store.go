// Package store keeps a SQLite history of dataset loads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/fueldash/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNoSnapshot is returned when no successful load has been recorded.
var ErrNoSnapshot = errors.New("no stored snapshot")

// Store wraps SQLite access for load history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS loads (
			id INTEGER PRIMARY KEY,
			source TEXT NOT NULL,
			loaded_at TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			dropped_count INTEGER NOT NULL,
			record_count INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS fuel_records (
			load_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			date TEXT NOT NULL,
			city TEXT NOT NULL,
			petrol REAL NOT NULL,
			diesel REAL NOT NULL,
			PRIMARY KEY (load_id, date, city)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_loads_loaded_at ON loads(loaded_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordLoad stores a successful load and its wide records.
func (s *Store) RecordLoad(ctx context.Context, ds model.Dataset, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO loads (source, loaded_at, row_count, dropped_count, record_count) VALUES (?, ?, ?, ?, ?)`,
		ds.Source,
		at.UTC().Format(time.RFC3339Nano),
		ds.Stats.Rows,
		ds.Stats.Dropped,
		len(ds.Records),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(ds.Records) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO fuel_records (load_id, seq, date, city, petrol, diesel) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, rec := range ds.Records {
			if _, err = stmt.ExecContext(ctx, id, i, rec.Date, rec.City, rec.PetrolPrice, rec.DieselPrice); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordFailure stores a failed load attempt.
func (s *Store) RecordFailure(ctx context.Context, source string, loadErr error, at time.Time) (int64, error) {
	msg := "unknown error"
	if loadErr != nil {
		msg = loadErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO loads (source, loaded_at, row_count, dropped_count, record_count, error) VALUES (?, ?, 0, 0, 0, ?)`,
		source, at.UTC().Format(time.RFC3339Nano), msg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListLoads returns the most recent loads, newest first. limit <= 0 lists all.
func (s *Store) ListLoads(ctx context.Context, limit int) ([]model.LoadEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, loaded_at, row_count, dropped_count, record_count, error
		 FROM loads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.LoadEntry
	for rows.Next() {
		var e model.LoadEntry
		var loadedAt string
		if err := rows.Scan(&e.ID, &e.Source, &loadedAt, &e.Rows, &e.Dropped, &e.Records, &e.Error); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, loadedAt)
		if err != nil {
			return nil, err
		}
		e.LoadedAt = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LatestSnapshot returns the records of the newest successful load in their
// source order. The domain is left for the caller to derive.
func (s *Store) LatestSnapshot(ctx context.Context) (model.Dataset, error) {
	var (
		id      int64
		source  string
		rowsN   int
		dropped int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, row_count, dropped_count FROM loads WHERE error = '' ORDER BY id DESC LIMIT 1`).
		Scan(&id, &source, &rowsN, &dropped)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dataset{}, ErrNoSnapshot
	}
	if err != nil {
		return model.Dataset{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, city, petrol, diesel FROM fuel_records WHERE load_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return model.Dataset{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.FuelRecord
	for rows.Next() {
		var rec model.FuelRecord
		if err := rows.Scan(&rec.Date, &rec.City, &rec.PetrolPrice, &rec.DieselPrice); err != nil {
			return model.Dataset{}, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.Dataset{}, err
	}
	return model.Dataset{
		Source:  source,
		Records: records,
		Stats: model.LoadStats{
			Rows:    rowsN,
			Dropped: dropped,
			Records: len(records),
		},
	}, nil
}
