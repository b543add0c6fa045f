package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("PRIMARY_CHAT_ID", "-1001")
	t.Setenv("MODERATOR_CHAT_ID", "-1002")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerAddr != ":8080" {
		t.Errorf("ServerAddr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Workers)
	}
	if cfg.CountersignFreshness != 15*time.Minute {
		t.Errorf("CountersignFreshness = %v, want 15m", cfg.CountersignFreshness)
	}
	if cfg.CountersignTimeout != 5*time.Second {
		t.Errorf("CountersignTimeout = %v, want 5s", cfg.CountersignTimeout)
	}
	if cfg.InviteTTL != 24*time.Hour {
		t.Errorf("InviteTTL = %v, want 24h", cfg.InviteTTL)
	}
	if cfg.ModeratorLocale != "en" || cfg.LogFormat != "json" {
		t.Errorf("ModeratorLocale = %q, LogFormat = %q", cfg.ModeratorLocale, cfg.LogFormat)
	}
	if cfg.PrimaryChatID != -1001 || cfg.ModeratorChatID != -1002 {
		t.Errorf("chat ids = %d, %d", cfg.PrimaryChatID, cfg.ModeratorChatID)
	}
	if cfg.IsDev() || cfg.UseWebhook() {
		t.Errorf("IsDev() = %v, UseWebhook() = %v, want false", cfg.IsDev(), cfg.UseWebhook())
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "dev")
	t.Setenv("CHANNEL_ID", "-1003")
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/telegram/webhook/s3cret")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("COUNTERSIGN_EXTEND_ON_NOT_MODIFIED", "true")
	t.Setenv("COUNTERSIGN_REFRESH_INTERVAL", "10m")
	t.Setenv("SCAMMER_AUTO_BLOCK", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.IsDev() || !cfg.UseWebhook() {
		t.Errorf("IsDev() = %v, UseWebhook() = %v, want true", cfg.IsDev(), cfg.UseWebhook())
	}
	if cfg.ChannelID != -1003 || !cfg.ScammerAutoBlock || !cfg.CountersignExtendNotModified {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CountersignRefreshInterval != 10*time.Minute {
		t.Errorf("CountersignRefreshInterval = %v, want 10m", cfg.CountersignRefreshInterval)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing token", map[string]string{"BOT_TOKEN": ""}, "BOT_TOKEN"},
		{"bad chat id", map[string]string{"PRIMARY_CHAT_ID": "group"}, "PRIMARY_CHAT_ID"},
		{"zero moderator chat", map[string]string{"MODERATOR_CHAT_ID": "0"}, "MODERATOR_CHAT_ID"},
		{"webhook without secret", map[string]string{"WEBHOOK_URL": "https://bot.example.com"}, "WEBHOOK_SECRET"},
		{"no workers", map[string]string{"WORKERS": "0"}, "WORKERS"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad duration", map[string]string{"INVITE_TTL": "a day"}, "INVITE_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
			if err != nil && strings.Contains(err.Error(), "parse error on field") {
				t.Errorf("Load() error = %v, want env variable names only", err)
			}
		})
	}
}
