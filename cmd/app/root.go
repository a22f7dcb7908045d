package main

import (
	"context"
	"fmt"

	"creditslot/internal/booking"
	"creditslot/internal/clock"
	"creditslot/internal/config"
	"creditslot/internal/conversion"
	"creditslot/internal/db"
	"creditslot/internal/event"
	"creditslot/internal/logger"
	"creditslot/internal/notify"
	"creditslot/internal/payout"
	"creditslot/internal/user"
	"creditslot/internal/wallet"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "creditslot",
	Short:        "Credit-based slot booking service",
	SilenceUsage: true,
}

// app holds the wired services shared by the commands.
type app struct {
	cfg   *config.Config
	db    *sqlx.DB
	redis *redis.Client
	clock clock.Clock

	users       user.Repository
	conversions conversion.Service
	events      event.Service
	ledger      wallet.Ledger
	queue       *notify.Queue
	bookings    booking.Service
	payouts     payout.Service
}

func loadApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.LogLevel, "creditslot", cfg.Env)

	clk, err := clock.Load(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if migrate {
		if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
			database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Redis only backs the rate cache and notifications.
		logger.Warn("redis unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
	}

	a := &app{cfg: cfg, db: database, redis: rdb, clock: clk}
	a.wire()
	return a, nil
}

func (a *app) wire() {
	runner := db.NewTxRunner(a.db, a.cfg.DBLockTimeout)

	a.users = user.NewRepository(a.db)
	a.conversions = conversion.NewService(
		conversion.NewRepository(), a.db, a.clock,
		conversion.NewRedisCache(a.redis), a.cfg.ConversionCacheTTL,
	)

	slots := event.NewRepository()
	a.events = event.NewService(slots, a.db)
	a.ledger = wallet.NewLedger(wallet.NewRepository(), a.db, runner, a.conversions, a.clock)
	a.queue = notify.NewQueue(a.redis)

	bookingRepo := booking.NewRepository()
	a.bookings = booking.NewService(
		bookingRepo, slots, a.ledger, a.conversions,
		runner, a.db, a.queue, a.clock, a.cfg.Booking,
	)
	a.payouts = payout.NewService(
		payout.NewRepository(), slots, bookingRepo, a.conversions,
		payout.NewCalculator(a.cfg.Payout), runner, a.db, a.queue, a.clock,
	)
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		logger.Warn("closing redis", "error", err)
	}
	if err := a.db.Close(); err != nil {
		logger.Warn("closing database", "error", err)
	}
}
