// Package identitytest provides an in-memory identity.Repository for tests.
package identitytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/geo"
)

// Repository keeps users in a map. Reads return copies.
type Repository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identity.User
}

func NewRepository(users ...*identity.User) *Repository {
	m := &Repository{users: make(map[uuid.UUID]*identity.User)}
	for _, u := range users {
		_ = m.Create(context.Background(), u)
	}
	return m
}

func (m *Repository) Create(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Repository) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *Repository) FindDonorsByBloodTypes(_ context.Context, types []blood.Type, box *geo.Box) ([]identity.DonorCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[blood.Type]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	var out []identity.DonorCandidate
	for _, u := range m.users {
		if u.Role != identity.RoleDonor || u.Location == nil || u.PushToken == nil || *u.PushToken == "" || u.BloodType == nil {
			continue
		}
		if !allowed[*u.BloodType] {
			continue
		}
		if box != nil && !box.Contains(*u.Location) {
			continue
		}
		out = append(out, identity.DonorCandidate{
			ID:        u.ID,
			Name:      u.Name,
			BloodType: *u.BloodType,
			Location:  *u.Location,
			PushToken: *u.PushToken,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Repository) UpdateLocation(_ context.Context, id uuid.UUID, loc geo.LatLon) error {
	return m.update(id, func(u *identity.User) { u.Location = &loc })
}

func (m *Repository) UpdatePushToken(_ context.Context, id uuid.UUID, token string) error {
	return m.update(id, func(u *identity.User) { u.PushToken = &token })
}

func (m *Repository) ClearPushToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok && u.PushToken != nil && *u.PushToken == token {
		u.PushToken = nil
	}
	return nil
}

func (m *Repository) CountByRole(_ context.Context) (map[identity.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[identity.Role]int, len(identity.Roles))
	for _, r := range identity.Roles {
		out[r] = 0
	}
	for _, u := range m.users {
		out[u.Role]++
	}
	return out, nil
}

func (m *Repository) update(id uuid.UUID, fn func(u *identity.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

var _ identity.Repository = (*Repository)(nil)
