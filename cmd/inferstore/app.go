package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/inferstore/auth"
	"github.com/jonwraymond/inferstore/cache"
	"github.com/jonwraymond/inferstore/config"
	"github.com/jonwraymond/inferstore/gateway"
	"github.com/jonwraymond/inferstore/health"
	"github.com/jonwraymond/inferstore/observe"
	"github.com/jonwraymond/inferstore/server"
	"github.com/jonwraymond/inferstore/upstream"
)

const telemetryShutdownTimeout = 5 * time.Second

// app holds the wired process.
type app struct {
	cfg     *config.Config
	obs     observe.Observer
	logger  observe.Logger
	store   cache.Store
	up      upstream.Client
	ctrl    *gateway.Controller
	health  *health.Aggregator
	server  *server.Server
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg, logger: observe.NopLogger()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.obs, err = observe.NewObserver(ctx, cfg.ObserveConfig(version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.logger = a.obs.Logger()
	mw, err := observe.MiddlewareFromObserver(a.obs)
	if err != nil {
		return nil, err
	}

	files, redisStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	keyer, err := cfg.Keyer()
	if err != nil {
		return nil, err
	}

	if uc, ok := cfg.UpstreamClientConfig(); ok {
		client, err := upstream.NewGRPCClient(uc,
			upstream.WithMetrics(a.obs.Metrics()),
			upstream.WithLogger(a.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("upstream: %w", err)
		}
		a.up = client
		a.closers = append(a.closers, client.Close)
	}

	gwCfg, err := cfg.GatewayConfig()
	if err != nil {
		return nil, err
	}
	a.ctrl, err = gateway.New(gwCfg, a.store, keyer, a.up,
		gateway.WithLogger(a.logger),
		gateway.WithMetrics(a.obs.Metrics()),
	)
	if err != nil {
		return nil, err
	}

	a.health = health.NewAggregator(cfg.Health.Timeout)
	a.health.Register(health.NewStorageChecker(files.Root()))
	a.health.Register(health.NewDiskChecker(cfg.DiskConfig()))
	if a.up != nil {
		// Serve mode still answers recorded calls with the upstream down.
		onDown := health.StatusDegraded
		if gwCfg.Mode == gateway.ModeCollect {
			onDown = health.StatusUnhealthy
		}
		a.health.Register(health.NewUpstreamChecker(a.up, onDown))
	}
	if redisStore != nil {
		a.health.Register(health.NewPingChecker("redis", redisStore, health.StatusDegraded))
	}

	authn, err := auth.New(cfg.AuthConfig())
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithMiddleware(mw),
		server.WithAuthenticator(authn),
		server.WithInfo(server.Info{Name: config.ServiceName, Version: version}),
		server.WithMaxMessageBytes(cfg.Server.MaxMessageBytes),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	a.server = server.New(
		server.NewService(a.ctrl, opts...),
		server.NewHTTPHandler(a.health, a.obs.MetricsHandler()),
		opts...,
	)
	return a, nil
}

// openStore opens the file store and, when configured, layers the Redis
// tier behind it.
func (a *app) openStore(ctx context.Context) (*cache.FileStore, *cache.RedisStore, error) {
	policy, err := a.cfg.CachePolicy()
	if err != nil {
		return nil, nil, err
	}
	files, err := cache.OpenFileStore(a.cfg.Storage.Dir, policy)
	if err != nil {
		return nil, nil, err
	}
	a.store = files

	rc, ok := a.cfg.RedisConfig()
	if !ok {
		return files, nil, nil
	}
	rs, err := cache.NewRedisStore(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, rs.Close)
	a.store = cache.NewTieredStore(files, rs, cache.WithSecondaryErrorHandler(func(op string, err error) {
		a.logger.Warn(ctx, "redis tier failed",
			observe.F("op", op),
			observe.F("error", err),
		)
	}))
	return files, rs, nil
}

func (a *app) run(ctx context.Context) error {
	a.logger.Info(ctx, "starting inferstore",
		observe.F("version", version),
		observe.F("addr", a.cfg.Addr()),
		observe.F("mode", string(a.ctrl.Mode())),
		observe.F("failover", string(a.ctrl.Failover())),
		observe.F("upstream", a.cfg.Upstream.Target),
		observe.F("storage", a.cfg.Storage.Dir),
		observe.F("offline", a.ctrl.Offline()),
	)
	return a.server.ListenAndServe(ctx, a.cfg.Addr())
}

// check runs every health checker once and fails when any is unhealthy.
func (a *app) check(ctx context.Context) error {
	results := a.health.CheckAll(ctx)
	for name, r := range results {
		a.logger.Info(ctx, "check",
			observe.F("checker", name),
			observe.F("status", r.Status.String()),
			observe.F("message", r.Message),
		)
	}
	if overall := health.Overall(results); overall == health.StatusUnhealthy {
		return fmt.Errorf("check failed: %s", overall)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close failed", observe.F("error", err))
		}
	}
	a.closers = nil
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := a.obs.Shutdown(ctx); err != nil {
			a.logger.Warn(ctx, "telemetry shutdown failed", observe.F("error", err))
		}
	}
}
