package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dialogues (
	chat_id    INTEGER PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// SQLiteStore keeps states in a local SQLite file so they survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers; SQLite would otherwise return SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, chatID int64) (State, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM dialogues WHERE chat_id = ?`, chatID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get dialogue %d: %w", chatID, err)
	}

	state, err := Unmarshal([]byte(data))
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (s *SQLiteStore) Update(ctx context.Context, chatID int64, state State) error {
	data, err := Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dialogues (chat_id, state) VALUES (?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			state = excluded.state,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, chatID, string(data))
	if err != nil {
		return fmt.Errorf("update dialogue %d: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dialogues WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("remove dialogue %d: %w", chatID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
