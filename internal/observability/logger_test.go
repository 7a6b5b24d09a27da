package observability

import (
	"log/slog"
	"testing"

	"github.com/couchcryptid/epi-trends-service/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})

	// The default carries the service attribute too.
	assert.Same(t, logger, slog.Default())
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
