package universe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps one row per (window, symbol)
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the snapshot database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS universe_windows (
			version  TEXT    NOT NULL,
			start_ts INTEGER NOT NULL,
			end_ts   INTEGER NOT NULL,
			symbol   TEXT    NOT NULL,
			PRIMARY KEY (start_ts, symbol)
		);
	`)
	return err
}

// Load reads all windows ordered by start
func (s *SQLiteStore) Load(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, start_ts, end_ts, symbol
		FROM universe_windows
		ORDER BY start_ts ASC, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query universe_windows: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			version        string
			startTS, endTS int64
			symbol         string
		)
		if err := rows.Scan(&version, &startTS, &endTS, &symbol); err != nil {
			return nil, fmt.Errorf("sqlite scan universe_windows: %w", err)
		}
		start := fromUnix(startTS)
		if n := len(snaps); n == 0 || !snaps[n-1].Start.Equal(start) {
			snaps = append(snaps, Snapshot{Version: version, Start: start, End: fromUnix(endTS)})
		}
		last := &snaps[len(snaps)-1]
		last.Symbols = append(last.Symbols, symbol)
	}
	return snaps, rows.Err()
}

// Save replaces the stored windows in one transaction
func (s *SQLiteStore) Save(ctx context.Context, snapshots []Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM universe_windows`); err != nil {
		return fmt.Errorf("sqlite clear universe_windows: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO universe_windows (version, start_ts, end_ts, symbol)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snapshots {
		for _, sym := range snap.Symbols {
			if _, err := stmt.ExecContext(ctx, snap.Version, toUnix(snap.Start), toUnix(snap.End), sym); err != nil {
				return fmt.Errorf("sqlite insert %s/%s: %w", snap.Version, sym, err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// zero times are stored as 0
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
