package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingPayment Status = "pending-payment"
	StatusScheduled      Status = "scheduled"
	StatusConfirmed      Status = "confirmed"
	StatusInProgress     Status = "in-progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no-show"
	StatusRescheduled    Status = "rescheduled"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentPaid              PaymentStatus = "paid"
	PaymentPayAtHospital     PaymentStatus = "pay-at-hospital"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially-refunded"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
	// RoleSystem is the worker's identity for automatic actions such as
	// payment-window expiry. It never appears in the users table.
	RoleSystem Role = "system"
)

// TimeOfDay is a wall-clock time at minute resolution, counted as minutes
// since midnight.
type TimeOfDay int

const MinutesPerDay = 24 * 60

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Window is one weekday's availability: [Start, End) in minutes of day.
type Window struct {
	Enabled bool
	Start   TimeOfDay
	End     TimeOfDay
}

// Weekly holds one Window per weekday, indexed by time.Weekday (Sunday=0).
type Weekly [7]Window

// User is a directory record; the engine only needs role and liveness.
type User struct {
	ID       uuid.UUID
	Name     string
	Email    *string
	Role     Role
	IsActive bool
}

// Doctor is a directory record for a user with role=doctor. FeeCents is the
// source of the consultation-fee snapshot taken at booking time.
type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	IsActive  bool
	FeeCents  int64
	Weekly    Weekly
}

type Cancellation struct {
	Reason  string
	ActorID uuid.UUID
	At      time.Time
}

type CheckIn struct {
	At     time.Time
	Method string
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Date            time.Time // calendar day, UTC midnight
	Start           TimeOfDay
	DurationMinutes int
	Reason          string
	Status          Status
	PaymentStatus   PaymentStatus
	FeeCents        int64
	Cancellation    *Cancellation
	CheckIn         *CheckIn
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End is the exclusive end of the appointment window in minutes of day.
func (a *Appointment) End() TimeOfDay {
	return a.Start + TimeOfDay(a.DurationMinutes)
}

// StartAt composes the calendar day and wall-clock start into an instant.
func (a *Appointment) StartAt() time.Time {
	return a.Date.Add(time.Duration(a.Start) * time.Minute)
}

// Slot is one candidate window on a doctor's day. Available=false entries are
// informational: callers show them as taken rather than hiding them.
type Slot struct {
	Start     TimeOfDay
	Available bool
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DateOnly normalizes an instant to its calendar day at UTC midnight, the
// representation used for Appointment.Date throughout.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
