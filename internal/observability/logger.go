package observability

import (
	"log/slog"

	"github.com/couchcryptid/epi-trends-service/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT and sets it
// as the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "epi-trends")
	slog.SetDefault(logger)
	return logger
}
