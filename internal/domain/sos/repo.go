package sos

import (
	"context"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/pkg/pagination"
)

// Assignment is written together with the accept transition.
type Assignment struct {
	DonorID    uuid.UUID
	HospitalID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// Apply performs t only if the stored status still equals t.From and
	// returns the updated row. A request that moved on meanwhile yields a
	// state_conflict error; a missing one not_found.
	Apply(ctx context.Context, id uuid.UUID, t Transition, a *Assignment) (*Request, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error)
	ListForDonor(ctx context.Context, donorID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error)
	// ListActive returns active requests whose blood type is in types,
	// newest first.
	ListActive(ctx context.Context, types []blood.Type) ([]*Request, error)
	// LatestActiveForPatient returns nil, nil when the patient has none.
	LatestActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Request, error)
	ListRecent(ctx context.Context, limit int) ([]*Request, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
