package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory Repository with the same
// conflict and compare-and-swap semantics as the Postgres implementation.
// Service and handler tests run against it; the mutex makes the
// check-then-insert race observable the same way the doctor-day lock plus
// transaction does in production.
type MemoryRepository struct {
	mu          sync.Mutex
	appts       map[uuid.UUID]*Appointment
	events      []EventLog
	nextEventID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appts: make(map[uuid.UUID]*Appointment),
	}
}

func cloneAppointment(a *Appointment) *Appointment {
	cp := *a
	if a.Cancellation != nil {
		c := *a.Cancellation
		cp.Cancellation = &c
	}
	if a.CheckIn != nil {
		ci := *a.CheckIn
		cp.CheckIn = &ci
	}
	return &cp
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.appts {
		if existing.DoctorID != appt.DoctorID || !existing.Date.Equal(appt.Date) {
			continue
		}
		if !IsActiveStatus(existing.Status) {
			continue
		}
		if Overlaps(appt.Start, appt.DurationMinutes, existing.Start, existing.DurationMinutes) {
			return nil, ErrSlotUnavailable
		}
	}

	now := time.Now().UTC()
	created := cloneAppointment(appt)
	created.ID = uuid.New()
	created.CreatedAt = now
	created.UpdatedAt = now

	m.appts[created.ID] = created
	return cloneAppointment(created), nil
}

func (m *MemoryRepository) Reschedule(_ context.Context, id uuid.UUID, newDate time.Time, newStart TimeOfDay) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	for _, existing := range m.appts {
		if existing.ID == id {
			continue
		}
		if existing.DoctorID != a.DoctorID || !existing.Date.Equal(newDate) {
			continue
		}
		if !IsActiveStatus(existing.Status) {
			continue
		}
		if Overlaps(newStart, a.DurationMinutes, existing.Start, existing.DurationMinutes) {
			return nil, ErrSlotUnavailable
		}
	}

	if a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}

	a.Date = newDate
	a.Start = newStart
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) UpdateStatusAndPayment(_ context.Context, id uuid.UUID, fromStatus, toStatus Status, fromPay, toPay PaymentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != fromStatus || a.PaymentStatus != fromPay {
		return nil, ErrAppointmentNotFound
	}

	a.Status = toStatus
	a.PaymentStatus = toPay
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) UpdatePaymentStatus(_ context.Context, id uuid.UUID, from, to PaymentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.PaymentStatus != from {
		return nil, ErrAppointmentNotFound
	}

	a.PaymentStatus = to
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) CancelAppointment(_ context.Context, id uuid.UUID, from Status, c Cancellation) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = StatusCancelled
	a.Cancellation = &c
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) CheckInAppointment(_ context.Context, id uuid.UUID, ci CheckIn) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}

	a.Status = StatusConfirmed
	a.CheckIn = &ci
	a.UpdatedAt = time.Now().UTC()
	return cloneAppointment(a), nil
}

func (m *MemoryRepository) ListByDoctorDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			result = append(result, *cloneAppointment(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start < result[j].Start })
	return result, nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, *cloneAppointment(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Start > result[j].Start
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) FindStalePendingPayment(_ context.Context, olderThan time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appts {
		if a.Status == StatusPendingPayment && a.CreatedAt.Before(olderThan) {
			result = append(result, *cloneAppointment(a))
		}
	}
	return result, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEventID++
	ev.ID = m.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a snapshot of the recorded event log, oldest first.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}
