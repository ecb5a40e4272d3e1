package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rosterhq/control-plane/internal/bus"
	"github.com/rosterhq/control-plane/internal/config"
	"github.com/rosterhq/control-plane/internal/db"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/telemetry"
)

// Components holds every process-wide dependency Setup initializes, shared
// by cmd/controlplane, cmd/router, and cmd/taskcontroller so each main
// only wires what it actually uses.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	KV        kv.Store
	Bus       bus.Bus
	RedisClient *redis.Client // underlying client Bus wraps, reused by internal/ratelimit
	DB        *db.DB          // nil if WithoutDB was passed
	Telemetry *telemetry.Telemetry

	cleanupFuncs []func() error
}

// Shutdown runs every registered cleanup in reverse (LIFO) order. Intended
// to be deferred immediately after Setup returns.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the activity database when it was initialized; the KV
// store and the bus are not checked.
func (c *Components) Health(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Health(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
