package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	Date            string `json:"date"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Reason          string `json:"reason"`
}

type ConfirmPaymentRequest struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
}

// ActorRequest carries the acting user for lifecycle endpoints that need
// nothing else.
type ActorRequest struct {
	ActorID string `json:"actor_id"`
}

type RescheduleRequest struct {
	ActorID string `json:"actor_id"`
	Date    string `json:"date"`
	Start   string `json:"start"`
}

type CancelRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type CheckInRequest struct {
	ActorID string `json:"actor_id"`
	Method  string `json:"method"`
}

type CancellationResponse struct {
	Reason  string    `json:"reason"`
	ActorID uuid.UUID `json:"actor_id"`
	At      time.Time `json:"at"`
}

type CheckInResponse struct {
	Method string    `json:"method"`
	At     time.Time `json:"at"`
}

type AppointmentResponse struct {
	ID              uuid.UUID             `json:"id"`
	PatientID       uuid.UUID             `json:"patient_id"`
	DoctorID        uuid.UUID             `json:"doctor_id"`
	Date            string                `json:"date"`
	Start           string                `json:"start"`
	End             string                `json:"end"`
	DurationMinutes int                   `json:"duration_minutes"`
	Reason          string                `json:"reason"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	FeeCents        int64                 `json:"fee_cents"`
	Cancellation    *CancellationResponse `json:"cancellation,omitempty"`
	CheckIn         *CheckInResponse      `json:"check_in,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type SlotResponse struct {
	Start     string `json:"start"`
	Available bool   `json:"available"`
}

type DaySlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func newAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		Date:            a.Date.Format(dateLayout),
		Start:           a.Start.String(),
		End:             a.End().String(),
		DurationMinutes: a.DurationMinutes,
		Reason:          a.Reason,
		Status:          string(a.Status),
		PaymentStatus:   string(a.PaymentStatus),
		FeeCents:        a.FeeCents,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			Reason:  a.Cancellation.Reason,
			ActorID: a.Cancellation.ActorID,
			At:      a.Cancellation.At,
		}
	}
	if a.CheckIn != nil {
		resp.CheckIn = &CheckInResponse{
			Method: a.CheckIn.Method,
			At:     a.CheckIn.At,
		}
	}
	return resp
}

func newAppointmentListResponse(appts []booking.Appointment) AppointmentListResponse {
	resp := AppointmentListResponse{Appointments: make([]AppointmentResponse, 0, len(appts))}
	for i := range appts {
		resp.Appointments = append(resp.Appointments, newAppointmentResponse(&appts[i]))
	}
	return resp
}
