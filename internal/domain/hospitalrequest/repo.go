package hospitalrequest

import (
	"context"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/identity"
)

type Repository interface {
	// Create fails with DUPLICATE_PENDING_REQUEST when a pending request for
	// the same hospital, requester and role already exists.
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// FindPending returns nil, nil when there is none.
	FindPending(ctx context.Context, hospitalID, requesterID uuid.UUID, role identity.Role) (*Request, error)
	// Decide moves a pending request to status. A request that is no longer
	// pending yields a state_conflict error.
	Decide(ctx context.Context, id uuid.UUID, status Status, notes *string) (*Request, error)
	ListForHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Request, error)
	ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*Request, error)
}
