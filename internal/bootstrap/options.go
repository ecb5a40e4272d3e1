package bootstrap

import (
	"github.com/rosterhq/control-plane/internal/config"
	"github.com/rosterhq/control-plane/internal/logger"
)

// Option configures the bootstrap process.
type Option func(*options)

type options struct {
	skipDB        bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
}

// WithoutDB skips Postgres/ActivityEvent-store initialization — the
// Workflow Router and Task Controller never query activity history.
func WithoutDB() Option {
	return func(o *options) { o.skipDB = true }
}

// WithoutTelemetry skips starting the pprof debug surface.
func WithoutTelemetry() Option {
	return func(o *options) { o.skipTelemetry = true }
}

// WithCustomLogger substitutes a logger instead of building one from config.
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) { o.customLogger = log }
}

// WithCustomConfig substitutes a config instead of loading it from the
// environment, used by tests that want deterministic settings.
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) { o.customConfig = cfg }
}

func defaultOptions() *options {
	return &options{}
}
