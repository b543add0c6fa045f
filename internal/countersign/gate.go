// Package countersign answers "is this user a known scammer?" from a cached
// copy of the Countersign block-list, revalidating it with conditional GETs
// once the cached copy is older than the freshness window.
//
// The gate fails open: a failed or unparsable refresh keeps serving the last
// good snapshot and never surfaces an error to IsKnown callers.
package countersign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"joingate/internal/clock"
)

const (
	DefaultURL       = "https://countersign.chat/api/scammer_ids.json"
	DefaultFreshness = 15 * time.Minute
	DefaultTimeout   = 5 * time.Second

	maxBodySize = 16 << 20
)

// Result classifies one refresh attempt.
type Result string

const (
	ResultModified       Result = "modified"
	ResultNotModified    Result = "not_modified"
	ResultParseError     Result = "parse_error"
	ResultTransportError Result = "transport_error"
)

// Config controls the remote list and its caching policy.
type Config struct {
	URL       string
	Freshness time.Duration
	Timeout   time.Duration

	// ExtendOnNotModified advances FetchedAt when the server answers 304.
	// Off by default: every query after the window then revalidates until
	// the list actually changes.
	ExtendOnNotModified bool
}

// Snapshot is one fetched version of the list. Snapshots are never mutated
// after they are published; a refresh swaps in a new one.
type Snapshot struct {
	IDs       map[uint64]struct{}
	ETag      string
	FetchedAt time.Time
}

// Contains reports whether id is on the list.
func (s *Snapshot) Contains(id uint64) bool {
	if s == nil {
		return false
	}
	_, ok := s.IDs[id]
	return ok
}

// Stats is a read-only summary of the current snapshot.
type Stats struct {
	Size      int
	ETag      string
	FetchedAt time.Time
}

// Gate holds the shared snapshot.
type Gate struct {
	cfg     Config
	client  *http.Client
	clock   clock.Clock
	logger  *slog.Logger
	onFetch func(Result)

	group singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

// Option configures a Gate.
type Option func(*Gate)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gate) { g.client = c }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithLogger sets the logger used for refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithFetchObserver registers a callback invoked after every refresh attempt.
func WithFetchObserver(fn func(Result)) Option {
	return func(g *Gate) { g.onFetch = fn }
}

// New creates a gate with an empty, already stale snapshot.
func New(cfg Config, opts ...Option) *Gate {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &Gate{
		cfg:    cfg,
		clock:  clock.Real(),
		logger: slog.Default(),
		snap:   &Snapshot{IDs: map[uint64]struct{}{}},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: cfg.Timeout}
	}
	return g
}

func (g *Gate) current() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// Stats summarizes the current snapshot.
func (g *Gate) Stats() Stats {
	s := g.current()
	return Stats{Size: len(s.IDs), ETag: s.ETag, FetchedAt: s.FetchedAt}
}

// IsKnown reports whether userID is a known scammer. Fresh snapshots are
// answered without network access; stale ones are revalidated first.
func (g *Gate) IsKnown(ctx context.Context, userID uint64) bool {
	snap := g.current()
	cached := snap.Contains(userID)

	if g.clock.Now().Sub(snap.FetchedAt) < g.cfg.Freshness {
		return cached
	}

	result, err := g.refresh(ctx)
	if err != nil {
		g.logger.Warn("countersign refresh failed, serving cached list",
			"result", result, "error", err, "fetched_at", snap.FetchedAt)
		return cached
	}
	if result != ResultModified {
		return cached
	}
	return g.current().Contains(userID)
}

// Refresh revalidates the snapshot regardless of its age. Used for warm-up
// at startup and by the background refresher.
func (g *Gate) Refresh(ctx context.Context) error {
	_, err := g.refresh(ctx)
	return err
}

// refresh coalesces concurrent callers into a single conditional GET. The
// shared fetch ignores the first caller's cancellation; cfg.Timeout bounds it.
func (g *Gate) refresh(ctx context.Context) (Result, error) {
	v, err, _ := g.group.Do("refresh", func() (any, error) {
		result, err := g.revalidate(context.WithoutCancel(ctx))
		if g.onFetch != nil {
			g.onFetch(result)
		}
		return result, err
	})
	result, _ := v.(Result)
	return result, err
}

func (g *Gate) revalidate(ctx context.Context) (Result, error) {
	prev := g.current()

	next, result, err := g.fetch(ctx, prev.ETag)
	switch result {
	case ResultModified:
		g.mu.Lock()
		g.snap = next
		g.mu.Unlock()
		g.logger.Debug("countersign list updated", "ids", len(next.IDs), "etag", next.ETag)
	case ResultNotModified:
		g.logger.Debug("countersign list not modified")
		if g.cfg.ExtendOnNotModified {
			g.mu.Lock()
			g.snap = &Snapshot{IDs: prev.IDs, ETag: prev.ETag, FetchedAt: g.clock.Now()}
			g.mu.Unlock()
		}
	}
	return result, err
}

func (g *Gate) fetch(ctx context.Context, etag string) (*Snapshot, Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL, nil)
	if err != nil {
		return nil, ResultTransportError, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "joingate/1.0")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, ResultTransportError, fmt.Errorf("fetch countersign list: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, ResultNotModified, nil
	case http.StatusOK:
	default:
		return nil, ResultTransportError, fmt.Errorf("fetch countersign list: unexpected status %d", resp.StatusCode)
	}

	var raw []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&raw); err != nil {
		return nil, ResultParseError, fmt.Errorf("decode countersign list: %w", err)
	}

	ids := make(map[uint64]struct{}, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, ResultParseError, fmt.Errorf("parse countersign id %q: %w", s, err)
		}
		ids[id] = struct{}{}
	}

	return &Snapshot{
		IDs:       ids,
		ETag:      resp.Header.Get("ETag"),
		FetchedAt: g.clock.Now(),
	}, ResultModified, nil
}
