package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/geo"
)

// Repository persists users. GetByID reports a missing user as an
// apperr not_found error.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindDonorsByBloodTypes returns donors with a location and a push token
	// whose blood type is in types, optionally limited to box.
	FindDonorsByBloodTypes(ctx context.Context, types []blood.Type, box *geo.Box) ([]DonorCandidate, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, loc geo.LatLon) error
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error
	// ClearPushToken removes the user's token if it still equals token.
	ClearPushToken(ctx context.Context, id uuid.UUID, token string) error
	CountByRole(ctx context.Context) (map[Role]int, error)
}
