package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Proton-105/phonelookup/internal/analytics"
	"github.com/Proton-105/phonelookup/internal/database"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/health"
	"github.com/Proton-105/phonelookup/internal/httpapi"
	"github.com/Proton-105/phonelookup/internal/idempotency"
	"github.com/Proton-105/phonelookup/internal/jobs"
	"github.com/Proton-105/phonelookup/internal/ledger"
	"github.com/Proton-105/phonelookup/internal/lifecycle"
	"github.com/Proton-105/phonelookup/internal/lookup"
	"github.com/Proton-105/phonelookup/internal/middleware"
	"github.com/Proton-105/phonelookup/internal/ratelimit"
	"github.com/Proton-105/phonelookup/internal/repository"
	"github.com/Proton-105/phonelookup/internal/service"
	"github.com/Proton-105/phonelookup/pkg/config"
	"github.com/Proton-105/phonelookup/pkg/graceful"
	"github.com/Proton-105/phonelookup/pkg/logger"
	"github.com/Proton-105/phonelookup/pkg/metrics"
	"github.com/Proton-105/phonelookup/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("phonelookup exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	log.Info("starting phonelookup", slog.String("config", cfg.String()))

	flushSentry, err := logger.InitSentry(cfg.Sentry)
	if err != nil {
		log.Warn("sentry init failed, continuing without it", slog.Any("error", err))
	}
	defer flushSentry()

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	checker.AddCheck("redis", health.NewRedisChecker(rdb))

	store, err := openStore(ctx, cfg.Store, checker, shutdown, log)
	if err != nil {
		return err
	}

	rules := ratelimit.NewRules(cfg.RateLimit)
	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memoryLimiter, log)

	ledgerOpts := []ledger.Option{
		ledger.WithRateLimiter(limiter, rules),
		ledger.WithStartingBalance(cfg.Ledger.StartingBalance),
		ledger.WithPersistRetries(cfg.Ledger.PersistRetries, apperrors.InitialBackoff),
		ledger.WithLogger(log),
	}
	if store != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithStore(store))
	}
	accounts := ledger.New(ledgerOpts...)

	loaded, err := accounts.Load(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	metrics.SetLedgerAccounts(loaded)
	log.Info("accounts restored", slog.Int("count", loaded))

	sink := analytics.NewSink()
	gateway := lookup.NewHTTPGateway(cfg.Lookup, log)
	svc := service.New(accounts, gateway,
		service.WithAnalytics(sink),
		service.WithRefundOnUnavailable(cfg.Ledger.RefundOnUnavailable),
		service.WithLogger(log),
	)

	idemManager := idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log)

	scheduler := jobs.NewScheduler(log)
	for _, job := range []jobs.Job{
		jobs.EvictIdle(cfg.Jobs.EvictIdleSpec, accounts, cfg.Ledger.IdleThreshold, log),
		jobs.WindowCleanup(cfg.Jobs.WindowCleanupSpec, memoryLimiter),
		jobs.Gauges(cfg.Jobs.GaugesSpec, accounts, sink),
		jobs.IdempotencySweep(cfg.Jobs.IdempotencySweepSpec, idempotency.NewCleaner(rdb, log, cfg.Server.IdempotencyTTL+time.Hour), log),
	} {
		if err := scheduler.Register(job); err != nil {
			return err
		}
	}

	probes := lifecycle.NewProbes(checker, log)
	adminAuth := httpapi.NewAdminAuth(cfg.Admin)
	ingress := httpapi.NewTokenSet(cfg.Server.IngressTokens)

	router := httpapi.NewRouter(httpapi.Deps{
		Service:        svc,
		Ledger:         accounts,
		Analytics:      sink,
		Idempotency:    idemManager,
		IdempotencyTTL: cfg.Server.IdempotencyTTL,
		Probes:         probes,
		Ingress:        ingress,
		Admin:          adminAuth,
		AdminLimit:     middleware.NewRateLimitMiddleware(limiter, rules, log),
		Errors:         apperrors.NewHandler(log, cfg.Sentry.Enabled),
		IdleThreshold:  cfg.Ledger.IdleThreshold,
		Log:            log,
	})

	config.Watch(v,
		func(next *config.Config) {
			rules.Update(next.RateLimit)
			adminAuth.Update(next.Admin)
			ingress.Update(next.Server.IngressTokens)
			log.Info("configuration reloaded")
		},
		func(err error) {
			log.Error("configuration reload rejected", slog.Any("error", err))
		},
	)

	scheduler.Start()
	shutdown.Register("scheduler", scheduler.Stop)
	go func() {
		<-ctx.Done()
		probes.MarkDraining()
	}()

	srv := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	serveErr := srv.ListenAndServe(ctx)
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		log.Error("http server failed", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("phonelookup stopped")
	return serveErr
}

// openStore builds the durable account store selected by cfg. The none driver yields a nil store.
func openStore(ctx context.Context, cfg config.StoreConfig, checker *health.Checker, shutdown *lifecycle.Shutdown, log *slog.Logger) (ledger.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		db, err := database.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
		checker.AddCheck("postgres", health.NewDBChecker(db))

		applied, err := database.NewMigrator(db, log).ApplyDir(ctx, cfg.MigrationsDir)
		if err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("migrations applied", slog.Int("count", applied))
		return repository.NewPostgresAccountStore(db, log), nil

	case config.StoreDriverSQLite:
		store, err := repository.OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		shutdown.Register("sqlite", func(context.Context) error { return store.Close() })
		checker.AddCheck("sqlite", health.CheckFunc(store.Ping))
		return store, nil

	default:
		log.Warn("no durable store configured, balances live in memory only")
		return nil, nil
	}
}
