package sos

import (
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/platform/geo"
	"github.com/rescue/rescue/internal/platform/push"
)

type Kind string

const (
	KindBlood Kind = "blood"
	KindOrgan Kind = "organ"
)

func (k Kind) Valid() bool {
	return k == KindBlood || k == KindOrgan
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusActive, StatusPending, StatusCompleted, StatusCancelled}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OperationStatus tracks the hospital-side outcome once a donor accepted.
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationCompleted OperationStatus = "completed"
	OperationCancelled OperationStatus = "cancelled"
)

// Request maps to the sos_requests table.
type Request struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	PatientID       uuid.UUID        `db:"patient_id" json:"patient_id"`
	Kind            Kind             `db:"kind" json:"kind"`
	BloodType       *blood.Type      `db:"blood_type" json:"blood_type,omitempty"`
	Location        geo.LatLon       `json:"location"`
	SearchRadiusKm  float64          `db:"search_radius_km" json:"search_radius_km"`
	Description     *string          `db:"description" json:"description,omitempty"`
	Status          Status           `db:"status" json:"status"`
	OperationStatus *OperationStatus `db:"operation_status" json:"operation_status,omitempty"`
	AcceptedDonorID *uuid.UUID       `db:"accepted_donor_id" json:"accepted_donor_id,omitempty"`
	HospitalID      *uuid.UUID       `db:"hospital_id" json:"hospital_id,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Accepted reports whether a donor and hospital have been assigned.
func (r *Request) Accepted() bool {
	return r.AcceptedDonorID != nil && r.HospitalID != nil
}

// CreateInput is what a patient submits. BloodType falls back to the
// patient's profile when nil.
type CreateInput struct {
	Kind        Kind        `json:"kind"`
	BloodType   *blood.Type `json:"blood_type,omitempty"`
	Location    geo.LatLon  `json:"location"`
	Description *string     `json:"description,omitempty"`
}

type CreateResult struct {
	Request       *Request         `json:"sos_request"`
	DonorsCount   int              `json:"donors_count"`
	Notifications push.BulkOutcome `json:"notifications"`
}

type AcceptanceResult struct {
	Request             *Request           `json:"sos_request"`
	Hospital            *hospital.Hospital `json:"hospital"`
	HospitalDistanceKm  float64            `json:"hospital_distance_km"`
	Patient             identity.Contact   `json:"patient"`
	Donor               identity.Contact   `json:"donor"`
	PatientNotification push.Outcome       `json:"patient_notification"`
	DonorNotification   push.Outcome       `json:"donor_notification"`
}

// OperationResult is returned when a hospital reports an operation outcome.
type OperationResult struct {
	Request             *Request     `json:"sos_request"`
	PatientNotification push.Outcome `json:"patient_notification"`
	DonorNotification   push.Outcome `json:"donor_notification"`
}

// Available is an active request a donor can serve, with the donor's
// distance to it.
type Available struct {
	Request    *Request `json:"sos_request"`
	DistanceKm float64  `json:"distance_km"`
}

type Details struct {
	Request  *Request           `json:"sos_request"`
	Patient  *identity.Contact  `json:"patient,omitempty"`
	Donor    *identity.Contact  `json:"donor,omitempty"`
	Hospital *hospital.Hospital `json:"hospital,omitempty"`
}

// HospitalContact is the part of a hospital shared with patient and donor.
type HospitalContact struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   *string   `json:"phone,omitempty"`
	Address string    `json:"address"`
}

type CommunicationInfo struct {
	Patient  identity.Contact `json:"patient"`
	Donor    identity.Contact `json:"donor"`
	Hospital HospitalContact  `json:"hospital"`
}

type Stats struct {
	ByStatus map[Status]int `json:"by_status"`
	Total    int            `json:"total"`
}
