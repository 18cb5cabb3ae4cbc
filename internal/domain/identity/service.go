package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/geo"
	"github.com/rescue/rescue/internal/platform/push"
)

type Service struct {
	users  Repository
	logger zerolog.Logger
}

func NewService(users Repository, logger zerolog.Logger) *Service {
	return &Service{users: users, logger: logger.With().Str("service", "identity").Logger()}
}

func (s *Service) Create(ctx context.Context, u *User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "name is required")
	}
	if !u.Role.Valid() {
		return apperr.Validation(apperr.CodeInvalidInput, "role must be patient, donor, hospital_staff, or admin")
	}
	if u.BloodType != nil && !u.BloodType.Valid() {
		return apperr.Validation(apperr.CodeInvalidBloodType, "blood type is not one of the eight canonical types")
	}
	if u.Location != nil {
		if err := u.Location.Validate(); err != nil {
			return apperr.Validation(apperr.CodeInvalidCoordinates, err.Error())
		}
	}
	return s.users.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateLocation stores the actor's current coordinates.
func (s *Service) UpdateLocation(ctx context.Context, actor Actor, loc geo.LatLon) error {
	if err := loc.Validate(); err != nil {
		return apperr.Validation(apperr.CodeInvalidCoordinates, err.Error())
	}
	return s.users.UpdateLocation(ctx, actor.UserID, loc)
}

// RegisterPushToken stores the device token the actor's app registered.
func (s *Service) RegisterPushToken(ctx context.Context, actor Actor, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "push token is required")
	}
	return s.users.UpdatePushToken(ctx, actor.UserID, token)
}

func (s *Service) CountByRole(ctx context.Context) (map[Role]int, error) {
	return s.users.CountByRole(ctx)
}

// InvalidateTokens clears the tokens a push fan-out reported as permanently
// invalid and returns how many were cleared. Failures are logged only.
func InvalidateTokens(ctx context.Context, users Repository, recipients []push.Recipient, logger zerolog.Logger) int {
	cleared := 0
	for _, r := range recipients {
		if err := users.ClearPushToken(ctx, r.UserID, r.Token); err != nil {
			logger.Warn().Err(err).Str("user_id", r.UserID.String()).Msg("failed to clear invalid push token")
			continue
		}
		cleared++
	}
	if cleared > 0 {
		logger.Info().Int("cleared", cleared).Msg("cleared invalid push tokens")
	}
	return cleared
}
