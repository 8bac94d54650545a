package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAppointmentInPast        = errors.New("appointment is in the past")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
)

// Policy computes refund eligibility and amount for cancellations.
type Policy struct {
	Cutoff       time.Duration // free-cancellation window before the appointment
	FlatFeeCents int64         // flat cancellation fee deducted from refunds
}

// Refund is the outcome of a permitted cancellation. The amount is what the
// Payment collaborator should return when the appointment was paid.
type Refund struct {
	AmountCents int64
	Reason      string
}

// Evaluate decides whether the actor may cancel now and how much to refund.
// A returned error rejects the cancellation outright. Inside the cutoff only
// staff-side roles may cancel; patients are routed to the manual
// refund-request workflow.
func (p Policy) Evaluate(appt *Appointment, now time.Time, role Role) (Refund, error) {
	if IsTerminal(appt.Status) {
		return Refund{}, fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, appt.Status)
	}

	startAt := appt.StartAt()
	if !startAt.After(now) {
		return Refund{}, ErrAppointmentInPast
	}

	until := startAt.Sub(now)
	if until < p.Cutoff && role == RolePatient {
		return Refund{}, fmt.Errorf("%w: %s until the appointment", ErrCancellationWindowClosed, until.Round(time.Minute))
	}

	// The flat fee is withheld from every refund the policy grants, and the
	// refund never exceeds what was paid.
	amount := appt.FeeCents - p.FlatFeeCents
	if amount < 0 {
		amount = 0
	}
	if amount > appt.FeeCents {
		amount = appt.FeeCents
	}

	return Refund{
		AmountCents: amount,
		Reason:      fmt.Sprintf("cancelled %s before the appointment", until.Round(time.Minute)),
	}, nil
}
