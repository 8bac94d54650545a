package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/observability/metrics"
)

// outboxSource is the slice of RefundOutbox the deliverer drains.
type outboxSource interface {
	FetchPending(ctx context.Context, limit int32) ([]RefundInstruction, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkAttempt(ctx context.Context, id uuid.UUID, deliveryError string) error
	PendingCount(ctx context.Context) (int, error)
}

// RefundApplier moves the appointment's payment status once the money moved.
// *booking.Service satisfies it.
type RefundApplier interface {
	ApplyRefund(ctx context.Context, appointmentID uuid.UUID, amountCents int64) (*booking.Appointment, error)
}

// Deliverer polls the refund outbox and pushes each instruction through the
// gateway, then records the outcome on the appointment. Failed instructions
// stay pending and are retried on the next tick.
type Deliverer struct {
	outbox   outboxSource
	gateway  Gateway
	applier  RefundApplier
	metrics  *metrics.BookingMetrics
	log      zerolog.Logger
	batch    int32
	interval time.Duration
}

func NewDeliverer(outbox *RefundOutbox, gateway Gateway, applier RefundApplier, log zerolog.Logger) *Deliverer {
	return &Deliverer{
		outbox:   outbox,
		gateway:  gateway,
		applier:  applier,
		log:      log,
		batch:    25,
		interval: 2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batch = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.BookingMetrics) *Deliverer {
	d.metrics = m
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.outbox == nil || d.gateway == nil || d.applier == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	if count, err := d.outbox.PendingCount(ctx); err == nil {
		d.metrics.SetOutboxPending(count)
	}

	pending, err := d.outbox.FetchPending(ctx, d.batch)
	if err != nil {
		d.log.Error().Err(err).Msg("refund outbox fetch failed")
		return
	}

	for _, ins := range pending {
		if err := d.deliver(ctx, ins); err != nil {
			d.metrics.ObserveRefundDelivery("failed")
			d.log.Error().Err(err).
				Str("refund_id", ins.ID.String()).
				Str("appointment_id", ins.AppointmentID.String()).
				Int("attempts", ins.Attempts).
				Msg("refund delivery failed")
			if err := d.outbox.MarkAttempt(ctx, ins.ID, err.Error()); err != nil {
				d.log.Error().Err(err).Str("refund_id", ins.ID.String()).Msg("record refund attempt")
			}
			continue
		}
		d.metrics.ObserveRefundDelivery("delivered")
		d.log.Info().
			Str("refund_id", ins.ID.String()).
			Str("appointment_id", ins.AppointmentID.String()).
			Int64("amount_cents", ins.AmountCents).
			Msg("refund delivered")
	}
}

func (d *Deliverer) deliver(ctx context.Context, ins RefundInstruction) error {
	if err := d.gateway.Refund(ctx, ins.AppointmentID, ins.AmountCents, ins.Reason); err != nil {
		return fmt.Errorf("issue refund: %w", err)
	}
	if _, err := d.applier.ApplyRefund(ctx, ins.AppointmentID, ins.AmountCents); err != nil {
		return fmt.Errorf("apply refund: %w", err)
	}
	ok, err := d.outbox.MarkDelivered(ctx, ins.ID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if !ok {
		d.log.Warn().Str("refund_id", ins.ID.String()).Msg("refund was already marked delivered")
	}
	return nil
}
