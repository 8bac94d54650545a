package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []RefundInstruction
	delivered map[uuid.UUID]bool
	attempts  []string
}

func newFakeOutbox(instructions ...RefundInstruction) *fakeOutbox {
	return &fakeOutbox{pending: instructions, delivered: map[uuid.UUID]bool{}}
}

func (f *fakeOutbox) FetchPending(ctx context.Context, limit int32) ([]RefundInstruction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RefundInstruction
	for _, ins := range f.pending {
		if !f.delivered[ins.ID] && int32(len(out)) < limit {
			out = append(out, ins)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delivered[id] {
		return false, nil
	}
	f.delivered[id] = true
	return true, nil
}

func (f *fakeOutbox) MarkAttempt(ctx context.Context, id uuid.UUID, deliveryError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, deliveryError)
	return nil
}

func (f *fakeOutbox) PendingCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ins := range f.pending {
		if !f.delivered[ins.ID] {
			n++
		}
	}
	return n, nil
}

func (f *fakeOutbox) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

type fakeRefundGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRefundGateway) ChargeOrRecord(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method, transactionID string) error {
	return nil
}

func (f *fakeRefundGateway) Refund(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls++
	return nil
}

type fakeApplier struct {
	mu      sync.Mutex
	applied []int64
	err     error
}

func (f *fakeApplier) ApplyRefund(ctx context.Context, appointmentID uuid.UUID, amountCents int64) (*booking.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.applied = append(f.applied, amountCents)
	return &booking.Appointment{ID: appointmentID, PaymentStatus: booking.PaymentRefunded}, nil
}

func instruction(amount int64) RefundInstruction {
	return RefundInstruction{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		AmountCents:   amount,
		Reason:        "cancelled early",
		ComputedAt:    time.Now().UTC(),
	}
}

func newTestDeliverer(outbox *fakeOutbox, gw *fakeRefundGateway, applier *fakeApplier) *Deliverer {
	return &Deliverer{
		outbox:   outbox,
		gateway:  gw,
		applier:  applier,
		log:      zerolog.Nop(),
		batch:    25,
		interval: 5 * time.Millisecond,
	}
}

func TestDelivererDrainsPendingBatch(t *testing.T) {
	outbox := newFakeOutbox(instruction(4000), instruction(5000))
	gw := &fakeRefundGateway{}
	applier := &fakeApplier{}

	d := newTestDeliverer(outbox, gw, applier)
	d.drain(context.Background())

	if gw.calls != 2 {
		t.Fatalf("gateway calls = %d, want 2", gw.calls)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("applied = %v, want two refunds", applier.applied)
	}
	if outbox.deliveredCount() != 2 {
		t.Fatalf("delivered = %d, want 2", outbox.deliveredCount())
	}
	if len(outbox.attempts) != 0 {
		t.Fatalf("attempts = %v, want none", outbox.attempts)
	}
}

func TestDelivererKeepsInstructionOnGatewayFailure(t *testing.T) {
	outbox := newFakeOutbox(instruction(4000))
	gw := &fakeRefundGateway{err: errors.New("gateway unavailable")}
	applier := &fakeApplier{}

	d := newTestDeliverer(outbox, gw, applier)
	d.drain(context.Background())

	if outbox.deliveredCount() != 0 {
		t.Fatal("failed delivery was marked delivered")
	}
	if len(applier.applied) != 0 {
		t.Fatal("payment status moved despite gateway failure")
	}
	if len(outbox.attempts) != 1 || !strings.Contains(outbox.attempts[0], "issue refund") {
		t.Fatalf("attempts = %v", outbox.attempts)
	}

	// Next tick retries and succeeds.
	gw.err = nil
	d.drain(context.Background())

	if outbox.deliveredCount() != 1 {
		t.Fatal("instruction not delivered after gateway recovered")
	}
}

func TestDelivererKeepsInstructionOnApplierFailure(t *testing.T) {
	outbox := newFakeOutbox(instruction(4000))
	gw := &fakeRefundGateway{}
	applier := &fakeApplier{err: errors.New("storage down")}

	d := newTestDeliverer(outbox, gw, applier)
	d.drain(context.Background())

	// Money already moved; the replayed gateway write is a no-op, so leaving
	// the instruction pending is safe.
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
	if outbox.deliveredCount() != 0 {
		t.Fatal("instruction marked delivered despite applier failure")
	}
	if len(outbox.attempts) != 1 || !strings.Contains(outbox.attempts[0], "apply refund") {
		t.Fatalf("attempts = %v", outbox.attempts)
	}
}

func TestDelivererStartDrainsUntilCancelled(t *testing.T) {
	outbox := newFakeOutbox(instruction(4000))
	gw := &fakeRefundGateway{}
	applier := &fakeApplier{}

	d := newTestDeliverer(outbox, gw, applier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for outbox.deliveredCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("deliverer never drained the outbox")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop on context cancel")
	}
}
