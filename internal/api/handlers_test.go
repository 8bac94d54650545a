package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/booking"
	"github.com/luqmanbooso/UrbanCare-Production-sub000/internal/config"
)

type stubDirectory struct {
	users   map[uuid.UUID]*booking.User
	doctors map[uuid.UUID]*booking.Doctor
}

func (d *stubDirectory) GetUser(ctx context.Context, id uuid.UUID) (*booking.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, booking.ErrUserNotFound
}

func (d *stubDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*booking.Doctor, error) {
	if doc, ok := d.doctors[id]; ok {
		return doc, nil
	}
	return nil, booking.ErrDoctorNotFound
}

type stubPayments struct {
	charges int
}

func (p *stubPayments) ChargeOrRecord(ctx context.Context, appointmentID uuid.UUID, amountCents int64, method, transactionID string) error {
	p.charges++
	return nil
}

type stubRefunds struct {
	queued []int64
}

func (q *stubRefunds) Enqueue(ctx context.Context, appointmentID uuid.UUID, amountCents int64, reason string, computedAt time.Time) error {
	q.queued = append(q.queued, amountCents)
	return nil
}

type stubNotifier struct{}

func (stubNotifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any) {
}

type passthroughLocker struct{}

func (passthroughLocker) WithDoctorDayLock(ctx context.Context, doctorID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type apiHarness struct {
	router     http.Handler
	repo       *booking.MemoryRepository
	payments   *stubPayments
	refunds    *stubRefunds
	patientID  uuid.UUID
	patient2ID uuid.UUID
	doctorID   uuid.UUID
	staffID    uuid.UUID
	date       string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	patientID := uuid.New()
	patient2ID := uuid.New()
	doctorID := uuid.New()
	staffID := uuid.New()

	var weekly booking.Weekly
	for i := range weekly {
		weekly[i] = booking.Window{Enabled: true, Start: 540, End: 1020}
	}

	dir := &stubDirectory{
		users: map[uuid.UUID]*booking.User{
			patientID:  {ID: patientID, Name: "Asha Perera", Role: booking.RolePatient, IsActive: true},
			patient2ID: {ID: patient2ID, Name: "Nuwan Silva", Role: booking.RolePatient, IsActive: true},
			doctorID:   {ID: doctorID, Name: "Dr. Fernando", Role: booking.RoleDoctor, IsActive: true},
			staffID:    {ID: staffID, Name: "Front Desk", Role: booking.RoleStaff, IsActive: true},
		},
		doctors: map[uuid.UUID]*booking.Doctor{
			doctorID: {ID: doctorID, Name: "Dr. Fernando", IsActive: true, FeeCents: 5000, Weekly: weekly},
		},
	}

	repo := booking.NewMemoryRepository()
	payments := &stubPayments{}
	refunds := &stubRefunds{}

	cfg := config.Config{
		SlotGranularity: 15 * time.Minute,
		DefaultDuration: 30 * time.Minute,
		CancelCutoff:    24 * time.Hour,
		CancelFeeCents:  0,
		PaymentWindow:   30 * time.Minute,
	}

	svc := booking.NewService(booking.ServiceDeps{
		Repo:      repo,
		Directory: dir,
		Payments:  payments,
		Refunds:   refunds,
		Notifier:  stubNotifier{},
		Locker:    passthroughLocker{},
	}, cfg, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service: svc,
		Log:     zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})

	return &apiHarness{
		router:     router,
		repo:       repo,
		payments:   payments,
		refunds:    refunds,
		patientID:  patientID,
		patient2ID: patient2ID,
		doctorID:   doctorID,
		staffID:    staffID,
		date:       booking.DateOnly(time.Now().UTC().AddDate(0, 0, 2)).Format(dateLayout),
	}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) book(t *testing.T, start string) AppointmentResponse {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: h.patientID.String(),
		DoctorID:  h.doctorID.String(),
		Date:      h.date,
		Start:     start,
		Reason:    "recurring migraines",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book returned %d: %s", rec.Code, rec.Body.String())
	}
	return decodeAppointment(t, rec)
}

func (h *apiHarness) confirm(t *testing.T, id uuid.UUID) AppointmentResponse {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/appointments/"+id.String()+"/confirm-payment", ConfirmPaymentRequest{
		Method:        "card",
		TransactionID: "tx-" + id.String()[:8],
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm returned %d: %s", rec.Code, rec.Body.String())
	}
	return decodeAppointment(t, rec)
}

func decodeAppointment(t *testing.T, rec *httptest.ResponseRecorder) AppointmentResponse {
	t.Helper()
	var resp AppointmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode appointment response: %v", err)
	}
	return resp
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestBookAppointmentEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	appt := h.book(t, "10:00")

	if appt.Status != "pending-payment" || appt.PaymentStatus != "pending" {
		t.Fatalf("status = %s/%s, want pending-payment/pending", appt.Status, appt.PaymentStatus)
	}
	if appt.Start != "10:00" || appt.End != "10:30" || appt.DurationMinutes != 30 {
		t.Fatalf("window = %s-%s (%d min)", appt.Start, appt.End, appt.DurationMinutes)
	}
	if appt.Date != h.date {
		t.Fatalf("date = %s, want %s", appt.Date, h.date)
	}
	if appt.FeeCents != 5000 {
		t.Fatalf("fee_cents = %d, want 5000", appt.FeeCents)
	}
}

func TestBookAppointmentMalformedBody(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "invalid_request_body" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestBookAppointmentInvalidIDs(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: "not-a-uuid",
		DoctorID:  h.doctorID.String(),
		Date:      h.date,
		Start:     "10:00",
		Reason:    "recurring migraines",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "invalid_patient_id" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestBookAppointmentRejectsShortReason(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: h.patientID.String(),
		DoctorID:  h.doctorID.String(),
		Date:      h.date,
		Start:     "10:00",
		Reason:    "hi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "validation_error" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestBookAppointmentUnknownDoctor(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: h.patientID.String(),
		DoctorID:  uuid.NewString(),
		Date:      h.date,
		Start:     "10:00",
		Reason:    "recurring migraines",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "doctor_not_found" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestBookAppointmentConflict(t *testing.T) {
	h := newAPIHarness(t)
	h.book(t, "10:00")

	rec := h.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID: h.patient2ID.String(),
		DoctorID:  h.doctorID.String(),
		Date:      h.date,
		Start:     "10:15",
		Reason:    "annual checkup",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "slot_unavailable" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")

	confirmed := h.confirm(t, appt.ID)
	if confirmed.Status != "scheduled" || confirmed.PaymentStatus != "paid" {
		t.Fatalf("status = %s/%s, want scheduled/paid", confirmed.Status, confirmed.PaymentStatus)
	}
	if h.payments.charges != 1 {
		t.Fatalf("charges = %d, want 1", h.payments.charges)
	}

	rec := h.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm-payment", ConfirmPaymentRequest{
		Method:        "card",
		TransactionID: "tx-replay",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "already_paid" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestPayLaterEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")

	rec := h.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/pay-later", ActorRequest{
		ActorID: h.patientID.String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAppointment(t, rec)
	if resp.Status != "scheduled" || resp.PaymentStatus != "pay-at-hospital" {
		t.Fatalf("status = %s/%s, want scheduled/pay-at-hospital", resp.Status, resp.PaymentStatus)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")
	h.confirm(t, appt.ID)

	base := "/appointments/" + appt.ID.String()

	rec := h.do(t, http.MethodPost, base+"/check-in", CheckInRequest{
		ActorID: h.staffID.String(),
		Method:  "qr-code",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check-in status = %d: %s", rec.Code, rec.Body.String())
	}
	checkedIn := decodeAppointment(t, rec)
	if checkedIn.Status != "confirmed" || checkedIn.CheckIn == nil || checkedIn.CheckIn.Method != "qr-code" {
		t.Fatalf("check-in response = %+v", checkedIn)
	}

	rec = h.do(t, http.MethodPost, base+"/start", ActorRequest{ActorID: h.doctorID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeAppointment(t, rec); resp.Status != "in-progress" {
		t.Fatalf("status after start = %s", resp.Status)
	}

	rec = h.do(t, http.MethodPost, base+"/complete", ActorRequest{ActorID: h.doctorID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeAppointment(t, rec); resp.Status != "completed" {
		t.Fatalf("status after complete = %s", resp.Status)
	}

	rec = h.do(t, http.MethodPost, base+"/cancel", CancelRequest{
		ActorID: h.patientID.String(),
		Reason:  "changed my mind",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel of completed returned %d", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "illegal_transition" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestCancelEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")
	h.confirm(t, appt.ID)

	rec := h.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", CancelRequest{
		ActorID: h.patientID.String(),
		Reason:  "travel conflict",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	cancelled := decodeAppointment(t, rec)
	if cancelled.Status != "cancelled" {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.Cancellation == nil || cancelled.Cancellation.ActorID != h.patientID {
		t.Fatalf("cancellation = %+v", cancelled.Cancellation)
	}
	if len(h.refunds.queued) != 1 || h.refunds.queued[0] != 5000 {
		t.Fatalf("queued refunds = %v, want [5000]", h.refunds.queued)
	}
}

func TestCancelByOtherPatientForbidden(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")

	rec := h.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", CancelRequest{
		ActorID: h.patient2ID.String(),
		Reason:  "not mine",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "actor_not_allowed" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestCheckInWithoutSettledPayment(t *testing.T) {
	h := newAPIHarness(t)

	// Scheduled but unpaid, a state the API alone cannot reach.
	seeded, err := h.repo.CreateAppointment(context.Background(), &booking.Appointment{
		PatientID:       h.patientID,
		DoctorID:        h.doctorID,
		Date:            booking.DateOnly(time.Now().UTC().AddDate(0, 0, 2)),
		Start:           660,
		DurationMinutes: 30,
		Reason:          "recurring migraines",
		Status:          booking.StatusScheduled,
		PaymentStatus:   booking.PaymentPending,
		FeeCents:        5000,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}

	rec := h.do(t, http.MethodPost, "/appointments/"+seeded.ID.String()+"/check-in", CheckInRequest{
		ActorID: h.staffID.String(),
		Method:  "desk",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if e := decodeAPIError(t, rec); e.Error != "payment_required" {
		t.Fatalf("error = %s", e.Error)
	}
}

func TestRescheduleEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")
	h.confirm(t, appt.ID)

	newDate := booking.DateOnly(time.Now().UTC().AddDate(0, 0, 3)).Format(dateLayout)
	rec := h.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule", RescheduleRequest{
		ActorID: h.patientID.String(),
		Date:    newDate,
		Start:   "11:00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	moved := decodeAppointment(t, rec)
	if moved.Date != newDate || moved.Start != "11:00" {
		t.Fatalf("moved to %s %s, want %s 11:00", moved.Date, moved.Start, newDate)
	}
}

func TestGetAppointmentEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	appt := h.book(t, "10:00")

	rec := h.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeAppointment(t, rec); got.ID != appt.ID {
		t.Fatalf("id = %s, want %s", got.ID, appt.ID)
	}

	rec = h.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", rec.Code)
	}
}

func TestListAppointmentsEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	h.book(t, "10:00")
	h.book(t, "11:00")

	rec := h.do(t, http.MethodGet, "/appointments?patient_id="+h.patientID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AppointmentListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Appointments) != 2 {
		t.Fatalf("len = %d, want 2", len(resp.Appointments))
	}

	rec = h.do(t, http.MethodGet, "/appointments?doctor_id="+h.doctorID.String()+"&date="+h.date, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("doctor-day status = %d", rec.Code)
	}
	resp = AppointmentListResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode doctor-day list: %v", err)
	}
	if len(resp.Appointments) != 2 {
		t.Fatalf("doctor-day len = %d, want 2", len(resp.Appointments))
	}

	rec = h.do(t, http.MethodGet, "/appointments", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing filter status = %d, want 400", rec.Code)
	}
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	h := newAPIHarness(t)
	h.book(t, "10:00")

	rec := h.do(t, http.MethodGet, "/doctors/"+h.doctorID.String()+"/slots?date="+h.date+"&duration_minutes=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp DaySlotsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(resp.Slots) != 16 {
		t.Fatalf("len(slots) = %d, want 16", len(resp.Slots))
	}
	for _, s := range resp.Slots {
		if s.Start == "10:00" && s.Available {
			t.Fatal("booked slot reported available")
		}
		if s.Start == "09:00" && !s.Available {
			t.Fatal("free slot reported unavailable")
		}
	}

	rec = h.do(t, http.MethodGet, "/doctors/"+h.doctorID.String()+"/slots?date=bad", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/health/live", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("response missing X-Request-ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("X-Request-ID = %q, want req-42", got)
	}
}

func TestLivenessEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp LivenessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode liveness: %v", err)
	}
	if resp.Status != "ok" || resp.Env != "test" {
		t.Fatalf("liveness = %+v", resp)
	}
}
