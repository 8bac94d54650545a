package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the slice of pgxpool.Pool the payment stores need. Tests
// substitute a pgxmock pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Gateway records charges and issues refunds against the payment backend.
type Gateway interface {
	ChargeOrRecord(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method, transactionID string) error
	Refund(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string) error
}

// PgGateway keeps the payment ledger in Postgres. The hospital's provider
// settles the money out-of-band; this ledger is the system of record the
// booking engine consults.
type PgGateway struct {
	pool querier
}

func NewPgGateway(pool *pgxpool.Pool) *PgGateway {
	if pool == nil {
		panic("payment: pgx pool required")
	}
	return &PgGateway{pool: pool}
}

func newPgGatewayWithExec(exec querier) *PgGateway {
	if exec == nil {
		panic("payment: exec required")
	}
	return &PgGateway{pool: exec}
}

// ChargeOrRecord writes one ledger row per provider transaction. Replaying
// the same transaction_id is a no-op, which makes payment confirmation safe
// to retry.
func (g *PgGateway) ChargeOrRecord(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method, transactionID string) error {
	query := `
		INSERT INTO payments (id, appointment_id, amount_cents, method, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	if _, err := g.pool.Exec(ctx, query, uuid.New(), appointmentID, amountCents, method, transactionID); err != nil {
		return fmt.Errorf("payment: record charge: %w", err)
	}
	return nil
}

// Refund writes the refund row for an appointment. At most one refund per
// appointment; replays are no-ops.
func (g *PgGateway) Refund(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string) error {
	query := `
		INSERT INTO refunds (id, appointment_id, amount_cents, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id) DO NOTHING
	`
	if _, err := g.pool.Exec(ctx, query, uuid.New(), appointmentID, amountCents, reason); err != nil {
		return fmt.Errorf("payment: record refund: %w", err)
	}
	return nil
}
