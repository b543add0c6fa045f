// Package testutil provides test utilities and helpers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
)

// DatabaseURL returns TEST_DATABASE_URL, skipping the test when it is unset.
func DatabaseURL(t *testing.T) string {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return connString
}

// RedisURL returns TEST_REDIS_URL, skipping the test when it is unset.
func RedisURL(t *testing.T) string {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	return url
}

// DiscardLogger returns a logger that drops all records.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
