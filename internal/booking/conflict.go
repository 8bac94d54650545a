package booking

import "github.com/google/uuid"

// ActiveStatuses are the statuses that occupy a doctor's calendar. Terminal
// statuses never block a slot.
var ActiveStatuses = []Status{
	StatusPendingPayment,
	StatusScheduled,
	StatusConfirmed,
	StatusInProgress,
}

func IsActiveStatus(s Status) bool {
	switch s {
	case StatusPendingPayment, StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Overlaps reports whether [aStart, aStart+aMinutes) and
// [bStart, bStart+bMinutes) intersect. Half-open windows: back-to-back
// appointments do not conflict.
func Overlaps(aStart TimeOfDay, aMinutes int, bStart TimeOfDay, bMinutes int) bool {
	return aStart < bStart+TimeOfDay(bMinutes) && bStart < aStart+TimeOfDay(aMinutes)
}

// HasConflict checks a candidate window against a day's appointments,
// skipping non-active rows and the excluded id (a reschedule checking against
// everyone but itself).
func HasConflict(appts []Appointment, start TimeOfDay, durationMinutes int, exclude uuid.UUID) bool {
	for i := range appts {
		a := &appts[i]
		if a.ID == exclude {
			continue
		}
		if !IsActiveStatus(a.Status) {
			continue
		}
		if Overlaps(start, durationMinutes, a.Start, a.DurationMinutes) {
			return true
		}
	}
	return false
}
