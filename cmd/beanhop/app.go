package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/beanhop/backend/internal/catalog"
	"github.com/beanhop/backend/internal/config"
	"github.com/beanhop/backend/internal/database"
	"github.com/beanhop/backend/internal/gifts"
	"github.com/beanhop/backend/internal/httpapi"
	"github.com/beanhop/backend/internal/locks"
	"github.com/beanhop/backend/internal/loyalty"
	"github.com/beanhop/backend/internal/metrics"
	"github.com/beanhop/backend/internal/notifications"
	"github.com/beanhop/backend/internal/orders"
	"github.com/beanhop/backend/internal/payments"
	"github.com/beanhop/backend/internal/promos"
	"github.com/beanhop/backend/internal/search"
	"github.com/beanhop/backend/internal/seed"
	"github.com/beanhop/backend/internal/wallet"
	"github.com/beanhop/backend/pkg/logger"
	"github.com/beanhop/backend/supabase/client"
)

// app holds the process-wide dependencies and whatever must be closed on exit.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	repo    database.RepositoryInterface
	locker  locks.Locker
	closers []func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	files, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{Service: "beanhop-api", Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, log, nil
}

// newApp connects the datastore and the lock backend.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New("beanhop")}

	if cfg.DatabaseURL != "" {
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.repo = database.NewPostgresRepository(db)
		log.Info("datastore: postgres")
	} else {
		breaker := client.DefaultCircuitBreakerConfig()
		breaker.OnStateChange = func(from, to client.CircuitState) {
			log.WithField("from", from.String()).WithField("to", to.String()).Warn("datastore circuit breaker changed state")
		}
		c, err := client.New(client.Config{
			URL:            cfg.SupabaseURL,
			APIKey:         cfg.SupabaseKey(),
			CircuitBreaker: &breaker,
		})
		if err != nil {
			return nil, fmt.Errorf("supabase client: %w", err)
		}
		a.repo = database.NewSupabaseRepository(c)
		log.WithField("url", c.BaseURL()).Info("datastore: supabase")
	}

	if cfg.RedisURL != "" {
		rl, err := locks.NewRedisLockerFromURL(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rl.Close)
		a.locker = rl
		log.Info("locks: redis")
	} else {
		a.locker = locks.NewMemoryLocker()
	}
	return a, nil
}

// processor returns nil when no secret key is configured.
func (a *app) processor() payments.Processor {
	if !a.cfg.StripeEnabled() {
		return nil
	}
	return payments.NewStripeProcessor(a.cfg.StripeSecretKey, nil)
}

func (a *app) services() httpapi.Services {
	log, m, repo := a.log, a.metrics, a.repo

	pay := payments.NewService(a.processor(), repo, a.cfg.StripePublishableKey, log, m)
	ledger := wallet.NewLedger(repo, log, m)
	points := loyalty.NewService(repo, log, m)

	return httpapi.Services{
		Catalog:       catalog.NewService(repo, log),
		Orders:        orders.NewService(repo, repo, points, log),
		Loyalty:       points,
		Payments:      pay,
		Wallet:        wallet.NewService(ledger, pay, a.locker, log),
		Gifts:         gifts.NewService(repo, ledger, log, m),
		Notifications: notifications.NewService(repo, log),
		Promos:        promos.NewService(repo, log),
		Search:        search.NewService(repo, log),
		Seeder:        seed.NewSeeder(repo, log),
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}

// openDirect opens the Postgres DSN used by migrate.
func openDirect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL (or --dsn) is required")
	}
	return database.OpenPostgres(ctx, dsn)
}
