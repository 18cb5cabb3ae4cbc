// Package push delivers mobile push notifications through an injected
// Provider. Delivery is best-effort: a failure for one recipient never affects
// another, and the Gateway reports per-recipient outcomes instead of errors.
package push

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Message is a single provider call.
type Message struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Provider is a push transport (FCM, Expo, ...). Implementations wrap
// failures with Permanent or Transient so the gateway can classify them.
type Provider interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// Recipient is a user addressed by a push.
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"-"`
}

// FailureClass says whether a failed token is worth retrying.
type FailureClass string

const (
	ClassNone      FailureClass = ""
	ClassPermanent FailureClass = "permanent"
	ClassTransient FailureClass = "transient"
	ClassUnknown   FailureClass = "unknown"
)

// Failure reasons reported in Outcome.Reason.
const (
	ReasonNoToken  = "no_token"
	ReasonTimeout  = "timeout"
	ReasonRejected = "rejected"
)

type classifiedError struct {
	class FailureClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Permanent marks err as a failure that will recur for this token
// (unregistered, invalid, sender mismatch).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassPermanent, err: err}
}

// Transient marks err as a failure that may succeed later (quota, outage).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassTransient, err: err}
}

// Classify returns the class of err. Deadline expiry is transient; anything
// the provider did not classify is unknown.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassNone
	}
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassUnknown
}

// Outcome is the result of one send.
type Outcome struct {
	Delivered bool         `json:"delivered"`
	MessageID string       `json:"message_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Class     FailureClass `json:"class,omitempty"`
}

// RecipientOutcome pairs an outcome with the recipient it belongs to.
type RecipientOutcome struct {
	Recipient Recipient `json:"recipient"`
	Outcome   Outcome   `json:"outcome"`
}

// BulkOutcome summarises a fan-out. Outcomes follow the input order.
type BulkOutcome struct {
	SuccessCount           int                `json:"success_count"`
	FailureCount           int                `json:"failure_count"`
	Outcomes               []RecipientOutcome `json:"outcomes,omitempty"`
	RecipientsToInvalidate []Recipient        `json:"recipients_to_invalidate,omitempty"`
}
