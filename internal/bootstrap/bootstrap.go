// Package bootstrap assembles the process-wide Components every control
// plane binary starts from: config, logger, KV store, message bus,
// optional activity database, and telemetry.
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

// Setup initializes every shared component a control plane process needs,
// in dependency order, registering cleanup for each as it succeeds so a
// later failure still unwinds everything already started.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	components := &Components{cleanupFuncs: make([]func() error, 0)}

	var err error
	if o.customConfig != nil {
		components.Config = o.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if o.customLogger != nil {
		components.Logger = o.customLogger
	} else {
		components.Logger = logger.New(components.Config.Service.LogLevel, components.Config.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	components.Logger.Info("connecting to etcd", "endpoints", components.Config.KV.Endpoints)
	kvStore, err := kv.NewEtcdStore(kv.EtcdConfig{
		Endpoints:      components.Config.KV.Endpoints,
		DialTimeout:    components.Config.KV.DialTimeout,
		RequestTimeout: components.Config.KV.RequestTimeout,
		RetryBudget:    components.Config.KV.WatchRetryBudget,
		RetryBackoff:   components.Config.KV.WatchRetryBackoff,
	}, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	components.KV = kvStore
	components.addCleanup(func() error {
		components.Logger.Info("closing etcd connection")
		return kvStore.Close()
	})

	components.Logger.Info("connecting to redis", "addr", components.Config.Bus.Addr)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     components.Config.Bus.Addr,
		Password: components.Config.Bus.Password,
		DB:       components.Config.Bus.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		_ = components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	components.RedisClient = redisClient
	components.Bus = bus.NewRedisStreamBus(redisClient, components.Config.Bus.ConsumerName, components.Config.Bus.BlockTimeout, components.Logger)
	components.addCleanup(func() error {
		components.Logger.Info("closing redis connection")
		return components.Bus.Close()
	})

	if !o.skipDB {
		components.Logger.Info("connecting to activity database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})
	}

	if !o.skipTelemetry && components.Config.Telemetry.EnablePprof {
		components.Logger.Info("initializing telemetry")
		components.Telemetry = telemetry.New(components.Config.Telemetry.PprofPort, components.Logger)
		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup panics instead of returning an error, for binaries that can't
// meaningfully proceed without their dependencies.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
