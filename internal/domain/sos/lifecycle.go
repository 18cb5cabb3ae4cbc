package sos

import (
	"github.com/rescue/rescue/internal/platform/apperr"
)

// Event triggers a lifecycle transition.
type Event string

const (
	EventAccept            Event = "accept"
	EventCompleteOperation Event = "complete_operation"
	EventCancelOperation   Event = "cancel_operation"
	EventCancel            Event = "cancel"
)

// Transition is one row of the lifecycle table. A nil Operation leaves the
// stored operation status untouched.
type Transition struct {
	From      Status
	Event     Event
	To        Status
	Operation *OperationStatus
}

func op(s OperationStatus) *OperationStatus { return &s }

var transitions = []Transition{
	{From: StatusActive, Event: EventAccept, To: StatusPending, Operation: op(OperationPending)},
	{From: StatusPending, Event: EventCompleteOperation, To: StatusCompleted, Operation: op(OperationCompleted)},
	{From: StatusPending, Event: EventCancelOperation, To: StatusCancelled, Operation: op(OperationCancelled)},
	{From: StatusActive, Event: EventCancel, To: StatusCancelled},
}

// Next returns the transition event triggers from status from, or a
// state_conflict error when there is none.
func Next(from Status, event Event) (Transition, error) {
	for _, t := range transitions {
		if t.From == from && t.Event == event {
			return t, nil
		}
	}
	return Transition{}, apperr.StateConflict("sos request cannot "+string(event)+" while "+string(from)).
		WithDetail("status", string(from)).
		WithDetail("event", string(event))
}
