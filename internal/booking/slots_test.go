package booking

import (
	"testing"

	"github.com/google/uuid"
)

func TestOverlapsHalfOpen(t *testing.T) {
	tests := []struct {
		name   string
		aStart TimeOfDay
		aMin   int
		bStart TimeOfDay
		bMin   int
		want   bool
	}{
		{"back to back", 540, 30, 570, 30, false},
		{"back to back reversed", 570, 30, 540, 30, false},
		{"partial overlap", 540, 30, 555, 30, true},
		{"identical windows", 540, 30, 540, 30, true},
		{"long window contains short", 540, 60, 555, 15, true},
		{"short inside long", 555, 15, 540, 60, true},
		{"disjoint", 540, 30, 660, 30, false},
		{"ends where other starts", 540, 60, 600, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aMin, tt.bStart, tt.bMin); got != tt.want {
				t.Fatalf("Overlaps(%d,%d,%d,%d) = %v, want %v", tt.aStart, tt.aMin, tt.bStart, tt.bMin, got, tt.want)
			}
		})
	}
}

func TestHasConflictSkipsInactiveAndExcluded(t *testing.T) {
	booked := Appointment{ID: uuid.New(), Start: 600, DurationMinutes: 30, Status: StatusScheduled}
	cancelled := Appointment{ID: uuid.New(), Start: 630, DurationMinutes: 30, Status: StatusCancelled}
	appts := []Appointment{booked, cancelled}

	if !HasConflict(appts, 600, 30, uuid.Nil) {
		t.Fatal("expected a conflict with the scheduled appointment")
	}
	if HasConflict(appts, 630, 30, uuid.Nil) {
		t.Fatal("cancelled appointments must not block the window")
	}
	if HasConflict(appts, 600, 30, booked.ID) {
		t.Fatal("an appointment must not conflict with itself when excluded")
	}
}

func TestComputeSlotsMorningCalendar(t *testing.T) {
	// 09:00-12:00 template, 30-minute slots, 10:00 already booked.
	win := Window{Enabled: true, Start: 540, End: 720}
	booked := []Appointment{
		{ID: uuid.New(), Start: 600, DurationMinutes: 30, Status: StatusConfirmed},
	}

	slots := ComputeSlots(win, booked, 30)

	want := []Slot{
		{Start: 540, Available: true},
		{Start: 570, Available: true},
		{Start: 600, Available: false},
		{Start: 630, Available: true},
		{Start: 660, Available: true},
		{Start: 690, Available: true},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d = %+v, want %+v", i, slots[i], want[i])
		}
	}
}

func TestComputeSlotsDurationAware(t *testing.T) {
	// A 60-minute candidate collides with a 30-minute appointment anywhere
	// inside it, not only at its start.
	win := Window{Enabled: true, Start: 540, End: 720}
	booked := []Appointment{
		{ID: uuid.New(), Start: 570, DurationMinutes: 30, Status: StatusScheduled},
	}

	slots := ComputeSlots(win, booked, 60)

	want := []Slot{
		{Start: 540, Available: false},
		{Start: 600, Available: true},
		{Start: 660, Available: true},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d = %+v, want %+v", i, slots[i], want[i])
		}
	}
}

func TestComputeSlotsDisabledDay(t *testing.T) {
	if got := ComputeSlots(Window{}, nil, 30); got != nil {
		t.Fatalf("disabled day produced %v, want nil", got)
	}
}

func TestComputeSlotsNeverRunsPastWindowEnd(t *testing.T) {
	// 09:00-10:15 with 30-minute slots: a 10:00 slot would end at 10:30,
	// past the template, so only two slots exist.
	win := Window{Enabled: true, Start: 540, End: 615}

	slots := ComputeSlots(win, nil, 30)

	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[0].Start != 540 || slots[1].Start != 570 {
		t.Fatalf("slot starts = %d, %d, want 540, 570", slots[0].Start, slots[1].Start)
	}
}
