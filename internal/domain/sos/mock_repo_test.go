package sos

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/pkg/pagination"
)

// -- Mock Repository --

type mockSosRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Request
	applied int
}

func newMockSosRepo() *mockSosRepo {
	return &mockSosRepo{store: make(map[uuid.UUID]*Request)}
}

func (m *mockSosRepo) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	// keep created_at strictly increasing so newest-first ordering is stable
	r.CreatedAt = time.Now().Add(time.Duration(len(m.store)) * time.Millisecond)
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockSosRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("sos request not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockSosRepo) Apply(_ context.Context, id uuid.UUID, t Transition, a *Assignment) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("sos request not found")
	}
	if r.Status != t.From {
		return nil, apperr.StateConflict("sos request changed concurrently")
	}
	r.Status = t.To
	if t.Operation != nil {
		op := *t.Operation
		r.OperationStatus = &op
	}
	if a != nil {
		donor, hosp := a.DonorID, a.HospitalID
		r.AcceptedDonorID, r.HospitalID = &donor, &hosp
	}
	r.UpdatedAt = time.Now()
	m.applied++
	cp := *r
	return &cp, nil
}

func (m *mockSosRepo) list(match func(*Request) bool) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.store {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page(items []*Request, p pagination.Params) ([]*Request, int) {
	total := len(items)
	if p.Offset >= total {
		return nil, total
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return items[p.Offset:end], total
}

func statusMatches(r *Request, status *Status) bool {
	return status == nil || r.Status == *status
}

func (m *mockSosRepo) ListForPatient(_ context.Context, patientID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error) {
	items, total := page(m.list(func(r *Request) bool { return r.PatientID == patientID && statusMatches(r, status) }), p)
	return items, total, nil
}

func (m *mockSosRepo) ListForDonor(_ context.Context, donorID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error) {
	items, total := page(m.list(func(r *Request) bool {
		return r.AcceptedDonorID != nil && *r.AcceptedDonorID == donorID && statusMatches(r, status)
	}), p)
	return items, total, nil
}

func (m *mockSosRepo) ListActive(_ context.Context, types []blood.Type) ([]*Request, error) {
	return m.list(func(r *Request) bool {
		if r.Status != StatusActive || r.BloodType == nil {
			return false
		}
		for _, t := range types {
			if *r.BloodType == t {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockSosRepo) LatestActiveForPatient(_ context.Context, patientID uuid.UUID) (*Request, error) {
	items := m.list(func(r *Request) bool { return r.PatientID == patientID && r.Status == StatusActive })
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (m *mockSosRepo) ListRecent(_ context.Context, limit int) ([]*Request, error) {
	items := m.list(func(*Request) bool { return true })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockSosRepo) CountByStatus(_ context.Context) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[Status]int{}
	for _, s := range Statuses {
		out[s] = 0
	}
	for _, r := range m.store {
		out[r.Status]++
	}
	return out, nil
}
