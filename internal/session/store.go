package session

import (
	"context"
	"fmt"
	"path/filepath"
)

// Store persists dialogue states keyed by applicant chat id. Implementations
// must be safe for concurrent use; they are the only serialization point for
// events touching the same chat.
type Store interface {
	// Get returns the state for chatID and whether one exists.
	Get(ctx context.Context, chatID int64) (State, bool, error)
	// Update stores s as the state for chatID.
	Update(ctx context.Context, chatID int64, s State) error
	// Remove deletes the state for chatID. Removing a missing state is not an error.
	Remove(ctx context.Context, chatID int64) error
	Close() error
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	StoragePath string
	RedisURL    string
	DatabaseURL string
}

// ResolveBackend applies the default: sqlite when a storage path is set, memory otherwise.
func (o Options) ResolveBackend() string {
	if o.Backend != "" {
		return o.Backend
	}
	if o.StoragePath != "" {
		return BackendSQLite
	}
	return BackendMemory
}

// Open creates the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch backend := opts.ResolveBackend(); backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if opts.StoragePath == "" {
			return nil, fmt.Errorf("sqlite session backend requires STORAGE_PATH")
		}
		return OpenSQLite(ctx, filepath.Join(opts.StoragePath, "dialogues.sqlite"))
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis session backend requires REDIS_URL")
		}
		return OpenRedis(opts.RedisURL)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres session backend requires DATABASE_URL")
		}
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
