package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Log     zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	svc := cfg.Service
	r.Post("/appointments", bookAppointmentHandler(svc))
	r.Get("/appointments", listAppointmentsHandler(svc))
	r.Get("/appointments/{id}", getAppointmentHandler(svc))
	r.Post("/appointments/{id}/confirm-payment", confirmPaymentHandler(svc))
	r.Post("/appointments/{id}/pay-later", actorActionHandler(svc.ScheduleForPayLater))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(svc))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
	r.Post("/appointments/{id}/check-in", checkInHandler(svc))
	r.Post("/appointments/{id}/start", actorActionHandler(svc.StartConsult))
	r.Post("/appointments/{id}/complete", actorActionHandler(svc.Complete))
	r.Post("/appointments/{id}/no-show", actorActionHandler(svc.MarkNoShow))
	r.Get("/doctors/{id}/slots", availableSlotsHandler(svc))

	return r
}
