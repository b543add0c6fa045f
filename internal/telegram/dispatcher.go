package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"joingate/internal/dialogue"
	"joingate/internal/metrics"
)

// Handler processes converted updates. *dialogue.Engine implements it.
type Handler interface {
	HandleMessage(ctx context.Context, msg dialogue.Message) error
	HandleCallback(ctx context.Context, cb dialogue.Callback) error
	HandleChannelPost(ctx context.Context, post dialogue.ChannelPost) error
}

// Dispatcher runs each update in its own goroutine, at most workers at a time.
// A failing or panicking update never affects the others.
type Dispatcher struct {
	handler Handler
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(handler Handler, workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(workers)),
		logger:  logger,
	}
}

// Dispatch schedules u, blocking while all workers are busy. Updates arriving
// after ctx is done are dropped and the context error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, u tgbotapi.Update) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("dropping update", "update_id", u.UpdateID, "error", err)
		return fmt.Errorf("dispatch update %d: %w", u.UpdateID, err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		// In-flight updates finish during shutdown.
		d.run(context.WithoutCancel(ctx), u)
	}()
	return nil
}

func (d *Dispatcher) run(ctx context.Context, u tgbotapi.Update) {
	kind := kindOf(u)
	logger := d.logger.With("event_id", uuid.NewString(), "update_id", u.UpdateID, "kind", kind)

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordUpdate(kind, "panic")
			logger.Error("update handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := d.handle(ctx, kind, u); err != nil {
		metrics.RecordUpdate(kind, "error")
		logger.Error("update failed", "error", err)
		return
	}
	metrics.RecordUpdate(kind, "ok")
	logger.Debug("update handled")
}

func (d *Dispatcher) handle(ctx context.Context, kind string, u tgbotapi.Update) error {
	switch kind {
	case KindMessage:
		return d.handler.HandleMessage(ctx, toMessage(u.Message))
	case KindCallback:
		return d.handler.HandleCallback(ctx, toCallback(u.CallbackQuery))
	case KindChannelPost:
		return d.handler.HandleChannelPost(ctx, toChannelPost(u.ChannelPost))
	default:
		return nil
	}
}

// Poll dispatches updates until ctx is done or the channel closes.
func (d *Dispatcher) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := d.Dispatch(ctx, u); err != nil {
				return
			}
		}
	}
}

// HandleWebhook decodes a webhook body and dispatches the update. Once ctx is
// done it returns an error wrapping ctx.Err() so the delivery is retried.
func (d *Dispatcher) HandleWebhook(ctx context.Context, body []byte) error {
	var u tgbotapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	return d.Dispatch(ctx, u)
}

// Wait blocks until all dispatched updates have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
