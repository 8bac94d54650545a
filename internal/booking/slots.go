package booking

import "github.com/google/uuid"

// ComputeSlots expands one weekday's availability window into consecutive
// candidate slots of durationMinutes, marking each against the day's active
// appointments. A disabled day yields nil. Windows that would run past the
// template's end are not produced.
func ComputeSlots(win Window, appts []Appointment, durationMinutes int) []Slot {
	if !win.Enabled || durationMinutes <= 0 {
		return nil
	}

	var slots []Slot
	for start := win.Start; start+TimeOfDay(durationMinutes) <= win.End; start += TimeOfDay(durationMinutes) {
		slots = append(slots, Slot{
			Start:     start,
			Available: !HasConflict(appts, start, durationMinutes, uuid.Nil),
		})
	}
	return slots
}
