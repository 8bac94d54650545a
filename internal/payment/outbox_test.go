package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestEnqueueRefund(t *testing.T) {
	mock := newPaymentMock(t)
	outbox := newRefundOutboxWithExec(mock)

	apptID := uuid.New()
	computedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO refund_outbox").
		WithArgs(pgxmock.AnyArg(), apptID, int64(4000), "cancelled 26h0m0s before the appointment", computedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := outbox.Enqueue(context.Background(), apptID, 4000, "cancelled 26h0m0s before the appointment", computedAt)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFetchPendingReadsUndelivered(t *testing.T) {
	mock := newPaymentMock(t)
	outbox := newRefundOutboxWithExec(mock)

	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, appointment_id, amount_cents").
		WithArgs(int32(25)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "appointment_id", "amount_cents", "reason", "computed_at", "attempts", "created_at",
		}).
			AddRow(first, uuid.New(), int64(4000), "cancelled early", now, 0, now).
			AddRow(second, uuid.New(), int64(5000), "staff override", now, 2, now))

	pending, err := outbox.FetchPending(context.Background(), 25)
	if err != nil {
		t.Fatalf("FetchPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	if pending[0].ID != first || pending[0].AmountCents != 4000 {
		t.Fatalf("pending[0] = %+v", pending[0])
	}
	if pending[1].Attempts != 2 {
		t.Fatalf("pending[1].Attempts = %d, want 2", pending[1].Attempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkDeliveredReportsCASOutcome(t *testing.T) {
	mock := newPaymentMock(t)
	outbox := newRefundOutboxWithExec(mock)

	id := uuid.New()
	mock.ExpectExec("UPDATE refund_outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE refund_outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := outbox.MarkDelivered(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("first MarkDelivered = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = outbox.MarkDelivered(context.Background(), id)
	if err != nil || ok {
		t.Fatalf("replayed MarkDelivered = (%v, %v), want (false, nil)", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkAttemptRecordsError(t *testing.T) {
	mock := newPaymentMock(t)
	outbox := newRefundOutboxWithExec(mock)

	id := uuid.New()
	mock.ExpectExec("UPDATE refund_outbox").
		WithArgs(id, "issue refund: gateway unavailable").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := outbox.MarkAttempt(context.Background(), id, "issue refund: gateway unavailable"); err != nil {
		t.Fatalf("MarkAttempt: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPendingCount(t *testing.T) {
	mock := newPaymentMock(t)
	outbox := newRefundOutboxWithExec(mock)

	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := outbox.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
