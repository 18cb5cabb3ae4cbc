// Package hospitaltest provides an in-memory hospital.Repository for tests.
package hospitaltest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/platform/apperr"
)

// Repository keeps hospitals in insertion order. Like the PostgreSQL
// repository it allows one hospital per owner.
type Repository struct {
	mu        sync.Mutex
	hospitals []*hospital.Hospital
}

func NewRepository(hospitals ...*hospital.Hospital) *Repository {
	m := &Repository{}
	for _, h := range hospitals {
		_ = m.Create(context.Background(), h)
	}
	return m
}

func (m *Repository) Create(_ context.Context, h *hospital.Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.hospitals {
		if existing.OwnerUserID == h.OwnerUserID {
			return apperr.Duplicate(apperr.CodeInvalidInput, "this staff account already owns a hospital")
		}
	}
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.CreatedAt, h.UpdatedAt = time.Now(), time.Now()
	cp := *h
	m.hospitals = append(m.hospitals, &cp)
	return nil
}

func (m *Repository) GetByID(_ context.Context, id uuid.UUID) (*hospital.Hospital, error) {
	return m.find(func(h *hospital.Hospital) bool { return h.ID == id })
}

func (m *Repository) GetByOwner(_ context.Context, ownerID uuid.UUID) (*hospital.Hospital, error) {
	return m.find(func(h *hospital.Hospital) bool { return h.OwnerUserID == ownerID })
}

func (m *Repository) ListWithLocation(_ context.Context) ([]*hospital.Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*hospital.Hospital
	for _, h := range m.hospitals {
		if h.Location != nil {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Repository) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hospitals), nil
}

func (m *Repository) find(match func(*hospital.Hospital) bool) (*hospital.Hospital, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hospitals {
		if match(h) {
			cp := *h
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("hospital not found")
}

var _ hospital.Repository = (*Repository)(nil)
