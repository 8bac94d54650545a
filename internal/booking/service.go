package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/config"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/observability/metrics"
	redisclient "github.com/luqmanbooso/UrbanCare-Production-sub000/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventPaymentConfirmed       = "PAYMENT_CONFIRMED"
	EventPayLaterElected        = "PAY_LATER_ELECTED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventRefundRequested        = "REFUND_REQUESTED"
	EventRefundApplied          = "REFUND_APPLIED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventConsultStarted         = "CONSULT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventPendingPaymentExpired  = "PENDING_PAYMENT_EXPIRED"
)

var (
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrSlotContended   = errors.New("slot is currently being booked, please retry")
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyPaid     = errors.New("appointment is already paid")
	ErrPaymentRequired = errors.New("payment or pay-at-hospital election required before check-in")
)

// ValidationError reports malformed input. Callers correct and resubmit;
// nothing retries these automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Directory resolves the engine's party references.
type Directory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// Payments records charges with the external payment collaborator,
// idempotent on transactionID.
type Payments interface {
	ChargeOrRecord(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method, transactionID string) error
}

// RefundQueue accepts refund instructions for asynchronous, retryable
// delivery.
type RefundQueue interface {
	Enqueue(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string, computedAt time.Time) error
}

// Notifier is fire-and-forget: implementations must not block and have no
// error to report back.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any)
}

type ServiceDeps struct {
	Repo      Repository
	Directory Directory
	Payments  Payments
	Refunds   RefundQueue
	Notifier  Notifier
	Locker    redisclient.Locker
	Metrics   *metrics.BookingMetrics
}

type Service struct {
	repo      Repository
	directory Directory
	payments  Payments
	refunds   RefundQueue
	notifier  Notifier
	locker    redisclient.Locker
	metrics   *metrics.BookingMetrics
	policy    Policy
	cfg       config.Config
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(deps ServiceDeps, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      deps.Repo,
		directory: deps.Directory,
		payments:  deps.Payments,
		refunds:   deps.Refunds,
		notifier:  deps.Notifier,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		policy: Policy{
			Cutoff:       cfg.CancelCutoff,
			FlatFeeCents: cfg.CancelFeeCents,
		},
		cfg: cfg,
		log: log,
		now: time.Now,
	}
}

type BookParams struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Date            time.Time
	Start           TimeOfDay
	DurationMinutes int // 0 means the configured default
	Reason          string
}

// Book reserves a window for a patient/doctor pair. The conflict check and
// the insert run as one atomic unit under the doctor-day lock, so of two
// concurrent attempts on overlapping windows exactly one succeeds and the
// other sees ErrSlotUnavailable.
func (s *Service) Book(ctx context.Context, p BookParams) (*Appointment, error) {
	began := time.Now()
	appt, err := s.book(ctx, p)
	s.metrics.ObserveBooking(bookingOutcome(err), time.Since(began).Seconds())
	return appt, err
}

func (s *Service) book(ctx context.Context, p BookParams) (*Appointment, error) {
	duration := p.DurationMinutes
	if duration == 0 {
		duration = int(s.cfg.DefaultDuration / time.Minute)
	}

	if err := s.validateWindow(p.Date, p.Start, duration); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(p.Reason)
	if n := utf8.RuneCountInString(reason); n < 5 || n > 500 {
		return nil, invalidf("reason", "must be 5-500 characters, got %d", n)
	}

	patient, err := s.directory.GetUser(ctx, p.PatientID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Role != RolePatient {
		return nil, fmt.Errorf("%w: user is not a patient", ErrPatientNotFound)
	}
	if !patient.IsActive {
		return nil, fmt.Errorf("%w: account is inactive", ErrPatientNotFound)
	}

	doctor, err := s.directory.GetDoctor(ctx, p.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, fmt.Errorf("%w: not accepting appointments", ErrDoctorNotFound)
	}

	date := DateOnly(p.Date)
	if err := checkWithinTemplate(doctor.Weekly[date.Weekday()], date, p.Start, duration); err != nil {
		return nil, err
	}

	draft := &Appointment{
		PatientID:       p.PatientID,
		DoctorID:        p.DoctorID,
		Date:            date,
		Start:           p.Start,
		DurationMinutes: duration,
		Reason:          reason,
		Status:          StatusPendingPayment,
		PaymentStatus:   PaymentPending,
		FeeCents:        doctor.FeeCents,
	}

	var created *Appointment
	err = s.locker.WithDoctorDayLock(ctx, p.DoctorID, date, func(lockCtx context.Context) error {
		var err error
		created, err = s.repo.CreateAppointment(lockCtx, draft)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"patient_id":       created.PatientID.String(),
		"doctor_id":        created.DoctorID.String(),
		"date":             created.Date.Format("2006-01-02"),
		"time":             created.Start.String(),
		"duration_minutes": created.DurationMinutes,
		"fee_cents":        created.FeeCents,
	})
	s.notifier.Notify(ctx, created.PatientID, "appointment-booked", map[string]any{
		"appointment_id": created.ID.String(),
		"date":           created.Date.Format("2006-01-02"),
		"time":           created.Start.String(),
	})

	return created, nil
}

// ConfirmPayment records the charge with the payment collaborator and moves
// pending-payment to scheduled. A second call finds paymentStatus=paid and
// returns ErrAlreadyPaid without touching state.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, method, transactionID string) (*Appointment, error) {
	if strings.TrimSpace(method) == "" {
		return nil, invalidf("method", "is required")
	}
	if strings.TrimSpace(transactionID) == "" {
		return nil, invalidf("transaction_id", "is required")
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.PaymentStatus == PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if _, err := Transition(appt.Status, ActionConfirmPayment, RoleSystem); err != nil {
		s.metrics.ObserveTransition(string(ActionConfirmPayment), "rejected")
		return nil, err
	}

	if err := s.payments.ChargeOrRecord(ctx, appt.ID, appt.FeeCents, method, transactionID); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	updated, err := s.repo.UpdateStatusAndPayment(ctx, id, StatusPendingPayment, StatusScheduled, PaymentPending, PaymentPaid)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, ActionConfirmPayment)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(ActionConfirmPayment), "ok")

	s.logEvent(ctx, id, EventPaymentConfirmed, map[string]any{
		"method":         method,
		"transaction_id": transactionID,
		"amount_cents":   appt.FeeCents,
	})
	s.notifier.Notify(ctx, updated.PatientID, "payment-confirmed", map[string]any{
		"appointment_id": id.String(),
		"amount_cents":   appt.FeeCents,
	})

	return updated, nil
}

// ScheduleForPayLater moves pending-payment to scheduled with
// paymentStatus=pay-at-hospital.
func (s *Service) ScheduleForPayLater(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	role, err := s.resolveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == RolePatient && appt.PatientID != actorID {
		return nil, fmt.Errorf("%w: not the appointment's patient", ErrActorNotAllowed)
	}
	if appt.PaymentStatus == PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if _, err := Transition(appt.Status, ActionPayLater, role); err != nil {
		s.metrics.ObserveTransition(string(ActionPayLater), "rejected")
		return nil, err
	}

	updated, err := s.repo.UpdateStatusAndPayment(ctx, id, StatusPendingPayment, StatusScheduled, PaymentPending, PaymentPayAtHospital)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, ActionPayLater)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(ActionPayLater), "ok")

	s.logEvent(ctx, id, EventPayLaterElected, map[string]any{
		"actor_id": actorID.String(),
	})

	return updated, nil
}

// Reschedule moves a scheduled appointment to a new window. The conflict
// recheck excludes the appointment itself and runs against the current state
// of the doctor's day at commit time, under the new day's lock.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay, actorID uuid.UUID) (*Appointment, error) {
	role, err := s.resolveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == RolePatient && appt.PatientID != actorID {
		return nil, fmt.Errorf("%w: not the appointment's patient", ErrActorNotAllowed)
	}
	if _, err := Transition(appt.Status, ActionReschedule, role); err != nil {
		s.metrics.ObserveTransition(string(ActionReschedule), "rejected")
		return nil, err
	}

	if err := s.validateWindow(newDate, newStart, appt.DurationMinutes); err != nil {
		return nil, err
	}

	doctor, err := s.directory.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	date := DateOnly(newDate)
	if err := checkWithinTemplate(doctor.Weekly[date.Weekday()], date, newStart, appt.DurationMinutes); err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.locker.WithDoctorDayLock(ctx, appt.DoctorID, date, func(lockCtx context.Context) error {
		var err error
		updated, err = s.repo.Reschedule(lockCtx, id, date, newStart)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, ActionReschedule)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(ActionReschedule), "ok")

	s.logEvent(ctx, id, EventAppointmentRescheduled, map[string]any{
		"actor_id": actorID.String(),
		"old_date": appt.Date.Format("2006-01-02"),
		"old_time": appt.Start.String(),
		"new_date": updated.Date.Format("2006-01-02"),
		"new_time": updated.Start.String(),
	})
	s.notifier.Notify(ctx, updated.PatientID, "appointment-rescheduled", map[string]any{
		"appointment_id": id.String(),
		"date":           updated.Date.Format("2006-01-02"),
		"time":           updated.Start.String(),
	})

	return updated, nil
}

// Cancel runs the lifecycle transition and the cancellation policy, then
// queues the refund when one is due. A refund-queue failure is logged and
// never rolls back the cancellation.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidf("reason", "is required")
	}

	role, err := s.resolveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == RolePatient && appt.PatientID != actorID {
		return nil, fmt.Errorf("%w: not the appointment's patient", ErrActorNotAllowed)
	}
	if _, err := Transition(appt.Status, ActionCancel, role); err != nil {
		s.metrics.ObserveTransition(string(ActionCancel), "rejected")
		return nil, err
	}

	refund, err := s.policy.Evaluate(appt, s.now(), role)
	if err != nil {
		s.metrics.ObserveTransition(string(ActionCancel), "rejected")
		return nil, err
	}

	cancelled, err := s.repo.CancelAppointment(ctx, id, appt.Status, Cancellation{
		Reason:  reason,
		ActorID: actorID,
		At:      s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, ActionCancel)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(ActionCancel), "ok")

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{
		"actor_id": actorID.String(),
		"reason":   reason,
		"role":     string(role),
	})

	if appt.PaymentStatus == PaymentPaid && refund.AmountCents > 0 {
		if err := s.refunds.Enqueue(ctx, id, refund.AmountCents, refund.Reason, s.now()); err != nil {
			// The cancellation stands; the refund is reconciled out-of-band.
			s.log.Error().Err(err).
				Str("appointment_id", id.String()).
				Int64("amount_cents", refund.AmountCents).
				Msg("refund enqueue failed after cancellation")
		} else {
			s.logEvent(ctx, id, EventRefundRequested, map[string]any{
				"amount_cents": refund.AmountCents,
				"reason":       refund.Reason,
			})
		}
	}

	s.notifier.Notify(ctx, cancelled.PatientID, "appointment-cancelled", map[string]any{
		"appointment_id": id.String(),
		"reason":         reason,
	})

	return cancelled, nil
}

// CheckIn confirms arrival. Payment must be settled or deferred to the
// hospital unless the consultation is free.
func (s *Service) CheckIn(ctx context.Context, id, actorID uuid.UUID, method string) (*Appointment, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, invalidf("method", "is required")
	}

	role, err := s.resolveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(appt.Status, ActionCheckIn, role); err != nil {
		s.metrics.ObserveTransition(string(ActionCheckIn), "rejected")
		return nil, err
	}
	if appt.FeeCents > 0 && appt.PaymentStatus != PaymentPaid && appt.PaymentStatus != PaymentPayAtHospital {
		s.metrics.ObserveTransition(string(ActionCheckIn), "rejected")
		return nil, ErrPaymentRequired
	}

	updated, err := s.repo.CheckInAppointment(ctx, id, CheckIn{At: s.now(), Method: method})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, ActionCheckIn)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(ActionCheckIn), "ok")

	s.logEvent(ctx, id, EventAppointmentCheckedIn, map[string]any{
		"actor_id": actorID.String(),
		"method":   method,
	})

	return updated, nil
}

// StartConsult moves confirmed to in-progress.
func (s *Service) StartConsult(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, actorID, ActionStartConsult, EventConsultStarted)
}

// Complete moves in-progress to completed.
func (s *Service) Complete(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, actorID, ActionComplete, EventAppointmentCompleted)
}

// MarkNoShow records that a confirmed patient never turned up.
func (s *Service) MarkNoShow(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, actorID, ActionMarkNoShow, EventAppointmentNoShow)
}

func (s *Service) transition(ctx context.Context, id, actorID uuid.UUID, action Action, event string) (*Appointment, error) {
	role, err := s.resolveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(appt.Status, action, role)
	if err != nil {
		s.metrics.ObserveTransition(string(action), "rejected")
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, next)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.refineCASMiss(ctx, id, action)
		}
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), "ok")

	s.logEvent(ctx, id, event, map[string]any{
		"actor_id": actorID.String(),
	})

	return updated, nil
}

// AvailableSlots exposes the slot calendar for one doctor-day.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMinutes int) ([]Slot, error) {
	duration := durationMinutes
	if duration == 0 {
		duration = int(s.cfg.DefaultDuration / time.Minute)
	}

	gran := s.granularityMinutes()
	if duration <= 0 || duration%gran != 0 {
		return nil, invalidf("duration_minutes", "must be a positive multiple of %d", gran)
	}
	day := DateOnly(date)
	if day.Before(DateOnly(s.now())) {
		return nil, invalidf("date", "must not be in the past")
	}

	doctor, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsActive {
		return nil, fmt.Errorf("%w: not accepting appointments", ErrDoctorNotFound)
	}

	appts, err := s.repo.ListByDoctorDay(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list doctor day: %w", err)
	}

	return ComputeSlots(doctor.Weekly[day.Weekday()], appts, duration), nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListByDoctorDay retrieves all appointments on a doctor's calendar day.
func (s *Service) ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	appointments, err := s.repo.ListByDoctorDay(ctx, doctorID, DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor day: %w", err)
	}
	return appointments, nil
}

// ExpireStalePendingPayments cancels pending-payment appointments whose
// payment window elapsed, freeing their slots. Called by the worker
// periodically; each expiry is a system cancellation.
func (s *Service) ExpireStalePendingPayments(ctx context.Context) error {
	olderThan := s.now().Add(-s.cfg.PaymentWindow)
	stale, err := s.repo.FindStalePendingPayment(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("find stale pending-payment appointments: %w", err)
	}

	for _, appt := range stale {
		_, err := s.repo.CancelAppointment(ctx, appt.ID, StatusPendingPayment, Cancellation{
			Reason: "payment window elapsed",
			At:     s.now(),
		})
		if err != nil {
			// Paid or cancelled in the meantime; skip.
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("expire pending payment")
			continue
		}
		s.logEvent(ctx, appt.ID, EventPendingPaymentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

// ApplyRefund records the refund outcome on the appointment after the
// payment collaborator returned the money. Safe to retry: a second call
// finds the payment status already moved and reports the current state.
func (s *Service) ApplyRefund(ctx context.Context, id uuid.UUID, amountCents int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to := PaymentPartiallyRefunded
	if amountCents >= appt.FeeCents {
		to = PaymentRefunded
	}

	updated, err := s.repo.UpdatePaymentStatus(ctx, id, PaymentPaid, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if appt.PaymentStatus == PaymentRefunded || appt.PaymentStatus == PaymentPartiallyRefunded {
				return appt, nil
			}
			return nil, fmt.Errorf("%w: refund applies to paid appointments, payment status is %s", ErrIllegalTransition, appt.PaymentStatus)
		}
		return nil, err
	}

	s.logEvent(ctx, id, EventRefundApplied, map[string]any{
		"amount_cents": amountCents,
		"to":           string(to),
	})

	return updated, nil
}

// Helpers

func (s *Service) granularityMinutes() int {
	return int(s.cfg.SlotGranularity / time.Minute)
}

func (s *Service) validateWindow(date time.Time, start TimeOfDay, durationMinutes int) error {
	if date.IsZero() {
		return invalidf("date", "is required")
	}

	gran := s.granularityMinutes()
	if durationMinutes <= 0 || durationMinutes%gran != 0 {
		return invalidf("duration_minutes", "must be a positive multiple of %d", gran)
	}
	if !start.Valid() {
		return invalidf("time", "must be between 00:00 and 23:59")
	}
	if int(start)%gran != 0 {
		return invalidf("time", "must align to %d-minute boundaries", gran)
	}
	if start+TimeOfDay(durationMinutes) > MinutesPerDay {
		return invalidf("duration_minutes", "window runs past midnight")
	}

	startAt := DateOnly(date).Add(time.Duration(start) * time.Minute)
	if !startAt.After(s.now()) {
		return invalidf("date", "must not be in the past")
	}

	return nil
}

// checkWithinTemplate rejects windows the doctor's weekly template cannot
// host. SlotUnavailable, not ValidationError: the input is well-formed, the
// calendar just has nothing there, so the caller should re-query slots.
func checkWithinTemplate(win Window, date time.Time, start TimeOfDay, durationMinutes int) error {
	if !win.Enabled {
		return fmt.Errorf("%w: doctor is not available on %s", ErrSlotUnavailable, date.Weekday())
	}
	if start < win.Start || start+TimeOfDay(durationMinutes) > win.End {
		return fmt.Errorf("%w: outside the doctor's %s-%s window", ErrSlotUnavailable, win.Start, win.End)
	}
	return nil
}

func (s *Service) resolveRole(ctx context.Context, actorID uuid.UUID) (Role, error) {
	user, err := s.directory.GetUser(ctx, actorID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", fmt.Errorf("%w: actor account is inactive", ErrActorNotAllowed)
	}
	return user.Role, nil
}

// refineCASMiss turns a compare-and-swap miss into the caller's real error:
// the row is gone, was already paid, or its status moved concurrently.
func (s *Service) refineCASMiss(ctx context.Context, id uuid.UUID, action Action) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if action == ActionConfirmPayment && appt.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	return fmt.Errorf("%w: cannot %s from %s", ErrIllegalTransition, action, appt.Status)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrSlotContended):
		return "conflict"
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return "validation_error"
		}
		return "error"
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
