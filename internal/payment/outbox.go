package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefundInstruction is one queued refund awaiting delivery.
type RefundInstruction struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	AmountCents   int64
	Reason        string
	ComputedAt    time.Time
	Attempts      int
	CreatedAt     time.Time
}

// RefundOutbox persists refund instructions for reliable delivery. The
// cancellation commits first; the instruction is drained by the worker until
// delivery sticks. Implements booking.RefundQueue.
type RefundOutbox struct {
	pool querier
}

func NewRefundOutbox(pool *pgxpool.Pool) *RefundOutbox {
	if pool == nil {
		panic("payment: pgx pool required")
	}
	return &RefundOutbox{pool: pool}
}

func newRefundOutboxWithExec(exec querier) *RefundOutbox {
	if exec == nil {
		panic("payment: exec required")
	}
	return &RefundOutbox{pool: exec}
}

func (o *RefundOutbox) Enqueue(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string, computedAt time.Time) error {
	query := `
		INSERT INTO refund_outbox (id, appointment_id, amount_cents, reason, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (appointment_id) DO NOTHING
	`
	if _, err := o.pool.Exec(ctx, query, uuid.New(), appointmentID, amountCents, reason, computedAt); err != nil {
		return fmt.Errorf("payment: enqueue refund: %w", err)
	}
	return nil
}

func (o *RefundOutbox) FetchPending(ctx context.Context, limit int32) ([]RefundInstruction, error) {
	query := `
		SELECT id, appointment_id, amount_cents, reason, computed_at, attempts, created_at
		FROM refund_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := o.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("payment: fetch pending refunds: %w", err)
	}
	defer rows.Close()

	var pending []RefundInstruction
	for rows.Next() {
		var ins RefundInstruction
		if err := rows.Scan(&ins.ID, &ins.AppointmentID, &ins.AmountCents, &ins.Reason, &ins.ComputedAt, &ins.Attempts, &ins.CreatedAt); err != nil {
			return nil, fmt.Errorf("payment: scan refund instruction: %w", err)
		}
		pending = append(pending, ins)
	}
	return pending, rows.Err()
}

func (o *RefundOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE refund_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := o.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("payment: mark refund delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (o *RefundOutbox) MarkAttempt(ctx context.Context, id uuid.UUID, deliveryError string) error {
	query := `
		UPDATE refund_outbox
		SET attempts = attempts + 1,
		    last_error = $2
		WHERE id = $1
	`
	if _, err := o.pool.Exec(ctx, query, id, deliveryError); err != nil {
		return fmt.Errorf("payment: mark refund attempt: %w", err)
	}
	return nil
}

func (o *RefundOutbox) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := o.pool.QueryRow(ctx, `
		SELECT count(*) FROM refund_outbox WHERE delivered_at IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("payment: count pending refunds: %w", err)
	}
	return n, nil
}
