package hospitalrequest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/domain/sos"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/events"
	"github.com/rescue/rescue/internal/platform/metrics"
	"github.com/rescue/rescue/internal/platform/push"
)

// newCaseWindow is how long an approval counts as new for the requester.
const newCaseWindow = 24 * time.Hour

// SosDirectory is the slice of the SOS lifecycle this workflow reads.
type SosDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*sos.Request, error)
	LatestActiveForPatient(ctx context.Context, patientID uuid.UUID) (*sos.Request, error)
	NewestAvailableForDonor(ctx context.Context, actor identity.Actor) (*sos.Request, error)
}

// Deps are the collaborators of a Service. Events, Metrics and Now are optional.
type Deps struct {
	Requests  Repository
	Users     identity.Repository
	Hospitals *hospital.Service
	Sos       SosDirectory
	Gateway   *push.Gateway
	Templates *push.TemplateEngine
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Service runs direct patient/donor requests to hospitals.
type Service struct {
	requests  Repository
	users     identity.Repository
	hospitals *hospital.Service
	sos       SosDirectory
	gateway   *push.Gateway
	templates *push.TemplateEngine
	events    events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		requests:  d.Requests,
		users:     d.Users,
		hospitals: d.Hospitals,
		sos:       d.Sos,
		gateway:   d.Gateway,
		templates: d.Templates,
		events:    d.Events,
		metrics:   d.Metrics,
		now:       d.Now,
		logger:    d.Logger.With().Str("service", "hospital_request").Logger(),
	}
	if s.templates == nil {
		s.templates = push.NewTemplateEngine()
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func requireRequester(actor identity.Actor) error {
	if !actor.Is(identity.RolePatient, identity.RoleDonor) {
		return apperr.Forbidden("only patients and donors can send hospital requests")
	}
	return nil
}

// Submit creates a pending request to a hospital and notifies the staff
// account that owns it.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, in SubmitInput) (*SubmitResult, error) {
	if err := requireRequester(actor); err != nil {
		return nil, err
	}
	h, err := s.hospitals.Get(ctx, in.HospitalID)
	if err != nil {
		return nil, err
	}
	var linked *sos.Request
	if in.SosRequestID != nil {
		if linked, err = s.sos.Get(ctx, *in.SosRequestID); err != nil {
			return nil, err
		}
	}
	return s.submit(ctx, actor, h, linked, in.Notes)
}

// SubmitToNearest sends a request to the hospital nearest the requester's
// stored location. A patient's latest active SOS request, or for a donor the
// newest active request they can serve, is linked when there is one.
func (s *Service) SubmitToNearest(ctx context.Context, actor identity.Actor, notes *string) (*SubmitResult, error) {
	if err := requireRequester(actor); err != nil {
		return nil, err
	}
	requester, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if requester.Location == nil {
		return nil, apperr.Validation(apperr.CodeMissingLocation, "update your location before sending a request to the nearest hospital")
	}
	nearest, err := s.hospitals.FindNearest(ctx, *requester.Location)
	if err != nil {
		return nil, err
	}

	var linked *sos.Request
	if actor.Is(identity.RolePatient) {
		linked, err = s.sos.LatestActiveForPatient(ctx, actor.UserID)
	} else {
		linked, err = s.sos.NewestAvailableForDonor(ctx, actor)
	}
	if err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, actor, nearest.Hospital, linked, notes)
	if err != nil {
		return nil, err
	}
	d := nearest.DistanceKm
	res.DistanceKm = &d
	return res, nil
}

func (s *Service) submit(ctx context.Context, actor identity.Actor, h *hospital.Hospital, linked *sos.Request, notes *string) (*SubmitResult, error) {
	existing, err := s.requests.FindPending(ctx, h.ID, actor.UserID, actor.Role)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicatePending(h.ID)
	}

	req := &Request{
		HospitalID:     h.ID,
		RequesterID:    actor.UserID,
		RequesterRole:  actor.Role,
		Status:         StatusPending,
		RequesterNotes: notes,
	}
	if linked != nil {
		id := linked.ID
		req.SosRequestID = &id
	}
	// the unique index catches a concurrent submit that passed the check above
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.HospitalRequest(string(StatusPending))
	s.publish(ctx, events.HospitalRequestSubmitted, req.ID, actor.UserID, map[string]any{
		"hospital_id": h.ID.String(),
		"role":        string(actor.Role),
	})

	res := &SubmitResult{Request: req, Hospital: h, SosRequest: linked}
	requester := s.loadUser(ctx, actor.UserID)
	owner := s.loadUser(ctx, h.OwnerUserID)
	name := ""
	if requester != nil {
		name = requester.Name
	}
	res.Notification = s.notify(ctx, owner, push.TemplateHospitalRequestNew,
		map[string]string{"role": string(actor.Role), "requester_name": name},
		map[string]string{
			"type":         "hospital_request",
			"request_id":   req.ID.String(),
			"request_type": string(actor.Role),
			"user_id":      actor.UserID.String(),
			"user_name":    name,
		})

	s.logger.Info().
		Str("request_id", req.ID.String()).
		Str("hospital_id", h.ID.String()).
		Str("role", string(actor.Role)).
		Msg("hospital request submitted")
	return res, nil
}

// Decide approves or rejects a pending request on behalf of the hospital's
// staff account. Deciding twice is a state_conflict.
func (s *Service) Decide(ctx context.Context, actor identity.Actor, id uuid.UUID, approve bool, notes *string) (*DecisionResult, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, alreadyDecided(req)
	}
	if !actor.Is(identity.RoleHospitalStaff, identity.RoleAdmin) {
		return nil, apperr.Forbidden("only hospital staff can decide hospital requests")
	}
	h, err := s.hospitals.Get(ctx, req.HospitalID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(identity.RoleAdmin) && h.OwnerUserID != actor.UserID {
		return nil, apperr.Forbidden("the request belongs to another hospital").WithDetail("hospital_id", h.ID.String())
	}

	status, event := StatusRejected, events.HospitalRequestRejected
	if approve {
		status, event = StatusApproved, events.HospitalRequestApproved
	}
	updated, err := s.requests.Decide(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	s.metrics.HospitalRequest(string(status))
	s.publish(ctx, event, id, actor.UserID, map[string]any{"hospital_id": h.ID.String()})

	res := &DecisionResult{Request: updated}
	res.Notification = s.notify(ctx, s.loadUser(ctx, updated.RequesterID), push.TemplateHospitalRequestDone,
		map[string]string{"hospital_name": h.Name, "status": string(status)},
		map[string]string{
			"type":          "hospital_request_update",
			"request_id":    id.String(),
			"status":        string(status),
			"hospital_id":   h.ID.String(),
			"hospital_name": h.Name,
		})

	s.logger.Info().Str("request_id", id.String()).Str("status", string(status)).Msg("hospital request decided")
	return res, nil
}

// ListForHospital returns the requests sent to the hospital the staff
// account owns, newest first.
func (s *Service) ListForHospital(ctx context.Context, actor identity.Actor) ([]*Request, error) {
	if !actor.Is(identity.RoleHospitalStaff) {
		return nil, apperr.Forbidden("only hospital staff can list hospital requests")
	}
	h, err := s.hospitals.GetByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.requests.ListForHospital(ctx, h.ID)
}

func (s *Service) CasesForRequester(ctx context.Context, actor identity.Actor) (*Cases, error) {
	if err := requireRequester(actor); err != nil {
		return nil, err
	}
	items, err := s.requests.ListForRequester(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	c := &Cases{Pending: []*Request{}, Approved: []*Request{}, Rejected: []*Request{}, New: []*Request{}}
	cutoff := s.now().Add(-newCaseWindow)
	for _, r := range items {
		switch r.Status {
		case StatusPending:
			c.Pending = append(c.Pending, r)
		case StatusApproved:
			c.Approved = append(c.Approved, r)
			if r.UpdatedAt.After(cutoff) {
				c.New = append(c.New, r)
			}
		case StatusRejected:
			c.Rejected = append(c.Rejected, r)
		}
	}
	c.Counts = CasesCounts{
		Pending:  len(c.Pending),
		Approved: len(c.Approved),
		Rejected: len(c.Rejected),
		New:      len(c.New),
		Total:    len(items),
	}
	return c, nil
}

func (s *Service) notify(ctx context.Context, u *identity.User, templateID string, tplData, data map[string]string) push.Outcome {
	if u == nil {
		return push.Outcome{Reason: push.ReasonNoToken}
	}
	title, body, err := s.templates.Render(templateID, tplData)
	if err != nil {
		s.logger.Error().Err(err).Str("template", templateID).Msg("render notification failed")
		return push.Outcome{Reason: err.Error(), Class: push.ClassUnknown}
	}
	r := u.Recipient()
	out := s.gateway.Send(ctx, r, title, body, data)
	if out.Class == push.ClassPermanent {
		identity.InvalidateTokens(ctx, s.users, []push.Recipient{r}, s.logger)
	}
	return out
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) *identity.User {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", id.String()).Msg("user lookup for notification failed")
		return nil
	}
	return u
}

func (s *Service) publish(ctx context.Context, name string, id, actorID uuid.UUID, payload map[string]any) {
	err := s.events.Publish(ctx, events.Event{Name: name, AggregateID: id, ActorID: actorID, Payload: payload})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", name).Str("request_id", id.String()).Msg("publish event failed")
	}
}
