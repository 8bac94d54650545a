package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/config"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/db"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/directory"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/notify"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/observability/metrics"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/payment"
	redisclient "github.com/luqmanbooso/UrbanCare-Production-sub000/internal/redis"
)

// The worker owns the two asynchronous halves of the booking engine: expiring
// pending-payment holds so their slots free up, and draining the refund
// outbox so granted refunds eventually reach the gateway.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load failed")
	}

	log := newLogger(cfg)
	log.Info().
		Str("env", cfg.Env).
		Dur("sweep_interval", cfg.WorkerInterval).
		Dur("deliverer_tick", cfg.DelivererTick).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	bookingMetrics := metrics.NewBookingMetrics(nil)
	gateway := payment.NewPgGateway(pgPool)
	outbox := payment.NewRefundOutbox(pgPool)

	svc := booking.NewService(booking.ServiceDeps{
		Repo:      booking.NewPgRepository(pgPool),
		Directory: directory.NewPgDirectory(pgPool),
		Payments:  gateway,
		Refunds:   outbox,
		Notifier:  notify.NewLogNotifier(log),
		Locker:    redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, cfg.LockWait),
		Metrics:   bookingMetrics,
	}, cfg, log)

	deliverer := payment.NewDeliverer(outbox, gateway, svc, log).
		WithBatchSize(int32(cfg.DelivererBatch)).
		WithInterval(cfg.DelivererTick).
		WithMetrics(bookingMetrics)
	go deliverer.Start(rootCtx)

	// Run one sweep immediately so a restart doesn't wait a full interval.
	sweep(rootCtx, svc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry-worker")
			return
		case <-ticker.C:
			sweep(rootCtx, svc, log)
		}
	}
}

func sweep(ctx context.Context, svc *booking.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpireStalePendingPayments(runCtx); err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("expiry sweep complete")
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return logger
}
