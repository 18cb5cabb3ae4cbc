package hospitalrequest

import (
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/domain/sos"
	"github.com/rescue/rescue/internal/platform/push"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request maps to the hospital_requests table. Approved and rejected are
// terminal.
type Request struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	HospitalID     uuid.UUID     `db:"hospital_id" json:"hospital_id"`
	RequesterID    uuid.UUID     `db:"requester_user_id" json:"requester_id"`
	RequesterRole  identity.Role `db:"requester_role" json:"requester_role"`
	SosRequestID   *uuid.UUID    `db:"sos_request_id" json:"sos_request_id,omitempty"`
	Status         Status        `db:"status" json:"status"`
	RequesterNotes *string       `db:"requester_notes" json:"requester_notes,omitempty"`
	HospitalNotes  *string       `db:"hospital_notes" json:"hospital_notes,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

type SubmitInput struct {
	HospitalID   uuid.UUID  `json:"hospital_id"`
	SosRequestID *uuid.UUID `json:"sos_request_id,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

type SubmitResult struct {
	Request      *Request           `json:"request"`
	Hospital     *hospital.Hospital `json:"hospital"`
	DistanceKm   *float64           `json:"distance_km,omitempty"`
	SosRequest   *sos.Request       `json:"sos_request,omitempty"`
	Notification push.Outcome       `json:"notification"`
}

type DecisionResult struct {
	Request      *Request     `json:"request"`
	Notification push.Outcome `json:"notification"`
}

// Cases groups a requester's requests. New holds the approvals of the last
// 24 hours.
type Cases struct {
	Pending  []*Request  `json:"pending"`
	Approved []*Request  `json:"approved"`
	Rejected []*Request  `json:"rejected"`
	New      []*Request  `json:"new"`
	Counts   CasesCounts `json:"counts"`
}

type CasesCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	New      int `json:"new"`
	Total    int `json:"total"`
}
