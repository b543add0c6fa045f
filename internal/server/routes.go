package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"joingate/internal/metrics"
)

// WebhookDispatcher accepts raw Bot API updates. *telegram.Dispatcher implements it.
type WebhookDispatcher interface {
	HandleWebhook(ctx context.Context, body []byte) error
}

// RegisterRoutes registers all application routes. Webhook updates are
// dispatched with ctx, which must outlive individual requests.
func (s *Server) RegisterRoutes(ctx context.Context, dispatcher WebhookDispatcher, gate metrics.SnapshotSource) {
	s.App.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.App.Get("/readyz", func(c fiber.Ctx) error {
		stats := gate.Stats()
		countersign := fiber.Map{"ids": stats.Size, "etag": stats.ETag}
		if !stats.FetchedAt.IsZero() {
			countersign["fetched_at"] = stats.FetchedAt
		}
		// The scammer check fails open, so an empty list does not make the bot unready.
		return c.JSON(fiber.Map{
			"status":      "ok",
			"countersign": countersign,
		})
	})

	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if s.Cfg.UseWebhook() {
		slog.Info("accepting updates by webhook", "path", webhookPrefix+":secret")
		s.App.Post(webhookPrefix+":secret", webhookHandler(ctx, s.Cfg.WebhookSecret, dispatcher))
	}
}

func webhookHandler(ctx context.Context, secret string, dispatcher WebhookDispatcher) fiber.Handler {
	return func(c fiber.Ctx) error {
		if subtle.ConstantTimeCompare([]byte(c.Params("secret")), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusNotFound, "Not Found")
		}

		// The request body buffer is reused once the handler returns.
		body := bytes.Clone(c.Body())
		if err := dispatcher.HandleWebhook(ctx, body); err != nil {
			// Shutting down: the Bot API redelivers on a non-2xx answer.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "Shutting down")
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
