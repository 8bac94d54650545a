package booking

import (
	"errors"
	"fmt"
)

type Action string

const (
	ActionConfirmPayment Action = "confirm-payment"
	ActionPayLater       Action = "pay-later"
	ActionCheckIn        Action = "check-in"
	ActionReschedule     Action = "reschedule"
	ActionCancel         Action = "cancel"
	ActionStartConsult   Action = "start-consult"
	ActionComplete       Action = "complete"
	ActionMarkNoShow     Action = "mark-no-show"
)

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrActorNotAllowed   = errors.New("actor role not allowed for this action")
)

type transitionKey struct {
	from   Status
	action Action
}

// transitions is the closed table of legal status moves. A reschedule passes
// through the rescheduled state and re-enters scheduled with the new window,
// so scheduled is what it persists.
var transitions = map[transitionKey]Status{
	{StatusPendingPayment, ActionConfirmPayment}: StatusScheduled,
	{StatusPendingPayment, ActionPayLater}:       StatusScheduled,
	{StatusPendingPayment, ActionCancel}:         StatusCancelled,

	{StatusScheduled, ActionCheckIn}:    StatusConfirmed,
	{StatusScheduled, ActionReschedule}: StatusScheduled,
	{StatusScheduled, ActionCancel}:     StatusCancelled,

	{StatusConfirmed, ActionStartConsult}: StatusInProgress,
	{StatusConfirmed, ActionMarkNoShow}:   StatusNoShow,
	{StatusConfirmed, ActionCancel}:       StatusCancelled,

	{StatusInProgress, ActionComplete}: StatusCompleted,
}

var actionRoles = map[Action][]Role{
	ActionConfirmPayment: {RolePatient, RoleStaff, RoleAdmin, RoleSystem},
	ActionPayLater:       {RolePatient, RoleStaff, RoleAdmin, RoleSystem},
	ActionCheckIn:        {RoleDoctor, RoleStaff, RoleAdmin},
	ActionReschedule:     {RolePatient, RoleStaff, RoleAdmin},
	ActionCancel:         {RolePatient, RoleStaff, RoleAdmin, RoleSystem},
	ActionStartConsult:   {RoleDoctor, RoleStaff, RoleAdmin},
	ActionComplete:       {RoleDoctor, RoleStaff, RoleAdmin},
	ActionMarkNoShow:     {RoleDoctor, RoleStaff, RoleAdmin},
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Transition validates one lifecycle move and returns the status to persist.
// Role is checked first so an unauthorized caller learns nothing about the
// appointment's current state.
func Transition(current Status, action Action, role Role) (Status, error) {
	if !roleAllowed(action, role) {
		return "", fmt.Errorf("%w: %s may not %s", ErrActorNotAllowed, role, action)
	}
	if IsTerminal(current) {
		return "", fmt.Errorf("%w: %s is terminal", ErrIllegalTransition, current)
	}
	next, ok := transitions[transitionKey{from: current, action: action}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s from %s", ErrIllegalTransition, action, current)
	}
	return next, nil
}

func roleAllowed(action Action, role Role) bool {
	for _, r := range actionRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}
