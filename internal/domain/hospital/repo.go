package hospital

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	// GetByOwner returns the hospital the staff account owns.
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Hospital, error)
	// ListWithLocation returns every hospital that has coordinates.
	ListWithLocation(ctx context.Context) ([]*Hospital, error)
	Count(ctx context.Context) (int, error)
}
