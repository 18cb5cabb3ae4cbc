package hospital

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/geo"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a hospital owned by a staff account. An owner may run
// only one hospital.
func (s *Service) Register(ctx context.Context, h *Hospital) error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return apperr.Validation(apperr.CodeInvalidInput, "hospital name is required")
	}
	if h.OwnerUserID == uuid.Nil {
		return apperr.Validation(apperr.CodeInvalidInput, "hospital owner is required")
	}
	if h.Location != nil {
		if err := h.Location.Validate(); err != nil {
			return apperr.Validation(apperr.CodeInvalidCoordinates, err.Error())
		}
	}
	return s.repo.Create(ctx, h)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Hospital, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// FindNearest returns the hospital closest to loc among those with
// coordinates. No candidate yields NO_HOSPITAL_AVAILABLE.
func (s *Service) FindNearest(ctx context.Context, loc geo.LatLon) (*Nearest, error) {
	hospitals, err := s.repo.ListWithLocation(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Hospital, len(hospitals))
	candidates := make([]geo.Candidate, 0, len(hospitals))
	for _, h := range hospitals {
		if h.Location == nil {
			continue
		}
		byID[h.ID] = h
		candidates = append(candidates, geo.Candidate{ID: h.ID, Location: *h.Location})
	}

	m, ok := geo.FindNearest(loc, candidates, nil)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeNoHospitalAvailable, "no hospital with a known location is available")
	}
	return &Nearest{Hospital: byID[m.ID], DistanceKm: m.DistanceKm}, nil
}
