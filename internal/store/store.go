// Package store persists book.Snapshot values to a sqlite database, one
// row per ticker.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"ledgerbook/internal/book"
)

// Store persists order-book snapshots, keyed by ticker, as JSON blobs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			ticker     TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	return nil
}

// Save serializes snap and upserts it under its own Ticker.
func (s *Store) Save(snap book.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot for %s: %w", snap.Ticker, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (ticker, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, snap.Ticker, data)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", snap.Ticker, err)
	}
	return nil
}

// Load reads back the most recently saved snapshot for ticker. The bool
// result is false if no snapshot has ever been saved for that ticker.
func (s *Store) Load(ticker string) (book.Snapshot, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE ticker = ?`, ticker).Scan(&data)
	if err == sql.ErrNoRows {
		return book.Snapshot{}, false, nil
	}
	if err != nil {
		return book.Snapshot{}, false, fmt.Errorf("loading snapshot for %s: %w", ticker, err)
	}

	var snap book.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return book.Snapshot{}, false, fmt.Errorf("unmarshaling snapshot for %s: %w", ticker, err)
	}
	return snap, true, nil
}

// Tickers lists every ticker with a saved snapshot.
func (s *Store) Tickers() ([]string, error) {
	rows, err := s.db.Query(`SELECT ticker FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}
