package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all appointment-store interactions needed by the
// service. Compare-and-swap methods return ErrAppointmentNotFound when no row
// matched, whether the id is unknown or the expected state has moved on; the
// service re-reads to tell the two apart.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CreateAppointment runs the duration-aware conflict check and the insert
	// as one atomic unit. Returns ErrSlotUnavailable on overlap with an
	// active appointment.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// Reschedule re-checks conflicts for the new window (excluding id) and
	// applies it in the same atomic unit, guarded on status=scheduled at
	// commit time.
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay) (*Appointment, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	UpdateStatusAndPayment(ctx context.Context, id uuid.UUID, fromStatus, toStatus Status, fromPay, toPay PaymentStatus) (*Appointment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, from Status, c Cancellation) (*Appointment, error)
	CheckInAppointment(ctx context.Context, id uuid.UUID, ci CheckIn) (*Appointment, error)

	ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// FindStalePendingPayment feeds the expiry sweep: pending-payment rows
	// created before olderThan.
	FindStalePendingPayment(ctx context.Context, olderThan time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
