package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPool is the slice of pgxpool.Pool the repository uses. Tests substitute
// a pgxmock pool.
type pgPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool pgPool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func newPgRepositoryWithExec(pool pgPool) *PgRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, doctor_id, date, start_minute, duration_minutes, reason,
	status, payment_status, fee_cents,
	cancel_reason, cancel_actor_id, cancelled_at,
	checked_in_at, check_in_method,
	created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a             Appointment
		startMinute   int
		cancelReason  *string
		cancelActor   *uuid.UUID
		cancelledAt   *time.Time
		checkedInAt   *time.Time
		checkInMethod *string
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&startMinute,
		&a.DurationMinutes,
		&a.Reason,
		&a.Status,
		&a.PaymentStatus,
		&a.FeeCents,
		&cancelReason,
		&cancelActor,
		&cancelledAt,
		&checkedInAt,
		&checkInMethod,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOnly(a.Date)
	a.Start = TimeOfDay(startMinute)

	if cancelledAt != nil {
		c := Cancellation{At: *cancelledAt}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		if cancelActor != nil {
			c.ActorID = *cancelActor
		}
		a.Cancellation = &c
	}
	if checkedInAt != nil {
		ci := CheckIn{At: *checkedInAt}
		if checkInMethod != nil {
			ci.Method = *checkInMethod
		}
		a.CheckIn = &ci
	}

	return &a, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// overlapExists is the duration-aware half of ConflictGuard: any active row
// for the doctor and date whose [start, start+duration) intersects the
// candidate window. Runs on the pool or inside a transaction.
func overlapExists(ctx context.Context, q queryRower, doctorID uuid.UUID, date time.Time, start TimeOfDay, durationMinutes int, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND id <> $3
			  AND status IN ('pending-payment', 'scheduled', 'confirmed', 'in-progress')
			  AND start_minute < $5
			  AND $4 < start_minute + duration_minutes
		)
	`, doctorID, date, exclude, int(start), int(start)+durationMinutes).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create appointment: %w", err)
	}
	defer tx.Rollback(ctx)

	conflict, err := overlapExists(ctx, tx, appt.DoctorID, appt.Date, appt.Start, appt.DurationMinutes, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotUnavailable
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, start_minute, duration_minutes,
			reason, status, payment_status, fee_cents, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns,
		id, appt.PatientID, appt.DoctorID, appt.Date, int(appt.Start), appt.DurationMinutes,
		appt.Reason, appt.Status, appt.PaymentStatus, appt.FeeCents)

	created, err := scanAppointment(row)
	if err != nil {
		// Partial unique index on (doctor_id, date, start_minute) over active
		// statuses backstops the in-transaction check.
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create appointment: %w", err)
	}

	return created, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	var doctorID uuid.UUID
	var duration int
	err = tx.QueryRow(ctx, `
		SELECT doctor_id, duration_minutes FROM appointments WHERE id = $1
	`, id).Scan(&doctorID, &duration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment for reschedule: %w", err)
	}

	conflict, err := overlapExists(ctx, tx, doctorID, newDate, newStart, duration, id)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotUnavailable
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2,
		    start_minute = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns,
		id, newDate, int(newStart))

	updated, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatusAndPayment(ctx context.Context, id uuid.UUID, fromStatus, toStatus Status, fromPay, toPay PaymentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    payment_status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		  AND payment_status = $5
		RETURNING `+appointmentColumns,
		id, toStatus, toPay, fromStatus, fromPay)

	return scanAppointment(row)
}

func (r *PgRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND payment_status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from Status, c Cancellation) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $2,
		    cancel_actor_id = $3,
		    cancelled_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		RETURNING `+appointmentColumns,
		id, c.Reason, c.ActorID, c.At, from)

	return scanAppointment(row)
}

func (r *PgRepository) CheckInAppointment(ctx context.Context, id uuid.UUID, ci CheckIn) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'confirmed',
		    checked_in_at = $2,
		    check_in_method = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns,
		id, ci.At, ci.Method)

	return scanAppointment(row)
}

func (r *PgRepository) ListByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) FindStalePendingPayment(ctx context.Context, olderThan time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending-payment'
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
