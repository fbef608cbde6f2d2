package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/config"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/credits/sqlitestore"
	"pickme-intel/internal/httpapi"
	"pickme-intel/internal/lookups"
	"pickme-intel/internal/metrics"
	"pickme-intel/internal/pricing"
	"pickme-intel/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds the process-wide dependencies. No globals: everything is built here
// once and handed to routes and commands.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    credits.Store
	credits  *credits.Service
	audit    *audit.Service
	lookups  *lookups.Service
	pricing  *pricing.Service
	metrics  *metrics.Ledger
	registry *prometheus.Registry
	limiter  httpapi.Limiter
	ping     func(ctx context.Context) error

	closers []func() error
}

type appOptions struct {
	// rateLimit connects to Redis when REDIS_HOST is set.
	rateLimit bool
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	var auditRepo audit.Repository
	var lookupRepo lookups.Repository
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = credits.NewPostgresStore(db)
		auditRepo = audit.NewPostgresRepo(db)
		lookupRepo = lookups.NewPostgresRepo(db)
		a.ping = func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) }
	case config.DriverSQLite:
		s, err := sqlitestore.New(cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		a.store = s
		auditRepo = s.AuditRepo()
		lookupRepo = s.LookupRepo()
		a.ping = s.Ping
	default:
		log.Warn("using in-memory store; data is lost on restart")
		a.store = credits.NewMemoryStore()
		auditRepo = audit.NewMemoryRepo()
		lookupRepo = lookups.NewMemoryRepo()
	}

	a.credits = credits.NewService(a.store,
		credits.WithLogger(log),
		credits.WithObserver(a.metrics),
		credits.WithCreditPrice(cfg.Billing.CreditPriceMinor),
	)
	a.audit = audit.NewService(auditRepo)
	a.lookups = lookups.NewService(lookupRepo)
	a.pricing = pricing.NewService(pricing.NewMemoryRepo())

	if opts.rateLimit && cfg.RateLimitEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Warn("redis unavailable, rate limiting disabled", "err", err)
		} else {
			a.closers = append(a.closers, rdb.Close)
			l, err := utils.NewFixedWindowLimiter(rdb, "ratelimit", cfg.RateLimit.Max, cfg.RateLimit.Window)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("rate limiter init: %w", err)
			}
			a.limiter = l
		}
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
