package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/api"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/config"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/db"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/directory"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/notify"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/observability/metrics"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/payment"
	redisclient "github.com/luqmanbooso/UrbanCare-Production-sub000/internal/redis"
)

var version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load failed")
	}

	log := newLogger(cfg)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	svc := booking.NewService(booking.ServiceDeps{
		Repo:      booking.NewPgRepository(pgPool),
		Directory: directory.NewPgDirectory(pgPool),
		Payments:  payment.NewPgGateway(pgPool),
		Refunds:   payment.NewRefundOutbox(pgPool),
		Notifier:  notify.NewLogNotifier(log),
		Locker:    redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, cfg.LockWait),
		Metrics:   bookingMetrics,
	}, cfg, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Log:     log,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	log.Info().Msg("api-server stopped")
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
