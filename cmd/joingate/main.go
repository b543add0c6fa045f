package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"joingate/internal/config"
	"joingate/internal/countersign"
	"joingate/internal/dialogue"
	"joingate/internal/i18n"
	"joingate/internal/jobs"
	"joingate/internal/metrics"
	"joingate/internal/server"
	"joingate/internal/session"
	"joingate/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("joingate exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store
	storeOpts := session.Options{
		Backend:     cfg.SessionBackend,
		StoragePath: cfg.StoragePath,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
	}
	store, err := session.Open(ctx, storeOpts)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("session store opened", "backend", storeOpts.ResolveBackend())

	// Scammer list
	gate := countersign.New(countersign.Config{
		URL:                 cfg.CountersignURL,
		Freshness:           cfg.CountersignFreshness,
		Timeout:             cfg.CountersignTimeout,
		ExtendOnNotModified: cfg.CountersignExtendNotModified,
	},
		countersign.WithLogger(logger.With("component", "countersign")),
		countersign.WithFetchObserver(metrics.RecordCountersignFetch),
	)
	if err := gate.Refresh(ctx); err != nil {
		logger.Warn("countersign warm-up failed, starting with an empty list", "error", err)
	}
	metrics.Init(gate)

	catalog, err := i18n.Load()
	if err != nil {
		return err
	}

	client, err := telegram.NewClient(cfg.BotToken, cfg.TelegramAPIEndpoint, nil)
	if err != nil {
		return err
	}
	logger.Info("authorized on bot api", "username", client.Username())

	engine := dialogue.New(dialogue.Config{
		PrimaryChatID:    cfg.PrimaryChatID,
		ModeratorChatID:  cfg.ModeratorChatID,
		ChannelID:        cfg.ChannelID,
		InviteTTL:        cfg.InviteTTL,
		ScammerAutoBlock: cfg.ScammerAutoBlock,
		ModeratorLocale:  cfg.ModeratorLocale,
	}, store, client, catalog,
		dialogue.WithGate(gate),
		dialogue.WithLogger(logger.With("component", "dialogue")),
	)
	dispatcher := telegram.NewDispatcher(engine, cfg.Workers, logger.With("component", "dispatcher"))

	if cfg.CountersignRefreshInterval > 0 {
		refresher := jobs.NewCountersignRefresher(gate, cfg.CountersignRefreshInterval, logger.With("component", "refresher"))
		go refresher.Start(ctx)
	}

	srv := server.New(cfg)
	srv.RegisterRoutes(ctx, dispatcher, gate)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()
	logger.Info("server started", "addr", cfg.ServerAddr)

	if cfg.UseWebhook() {
		if err := client.SetWebhook(cfg.WebhookURL); err != nil {
			return err
		}
		logger.Info("webhook registered")
	} else {
		updates, err := client.Updates()
		if err != nil {
			return err
		}
		logger.Info("polling for updates")
		go dispatcher.Poll(ctx, updates)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if !cfg.UseWebhook() {
		client.StopUpdates()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	dispatcher.Wait()

	logger.Info("joingate exited")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	// Validate has already checked the level.
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
