package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"joingate/migrations"
)

// PostgresStore keeps states in the dialogue_sessions table.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// OpenPostgres connects, runs the embedded migrations and returns the store.
func OpenPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(connString); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{Pool: pool}, nil
}

func runMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, chatID int64) (State, bool, error) {
	var data []byte
	err := s.Pool.QueryRow(ctx, `SELECT state FROM dialogue_sessions WHERE chat_id = $1`, chatID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get dialogue %d: %w", chatID, err)
	}

	state, err := Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

func (s *PostgresStore) Update(ctx context.Context, chatID int64, state State) error {
	data, err := Marshal(state)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO dialogue_sessions (chat_id, state)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`
	if _, err := s.Pool.Exec(ctx, query, chatID, data); err != nil {
		return fmt.Errorf("update dialogue %d: %w", chatID, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, chatID int64) error {
	if _, err := s.Pool.Exec(ctx, `DELETE FROM dialogue_sessions WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("remove dialogue %d: %w", chatID, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}
