package sos

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/domain/hospital"
	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/events"
	"github.com/rescue/rescue/internal/platform/geo"
	"github.com/rescue/rescue/internal/platform/metrics"
	"github.com/rescue/rescue/internal/platform/push"
	"github.com/rescue/rescue/internal/platform/settings"
	"github.com/rescue/rescue/pkg/pagination"
)

const DefaultRadiusKm = 10.0

// TxFunc runs fn as one storage transaction. Repositories called with the
// ctx handed to fn take part in it.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Deps are the collaborators of a Service. Tx, Events and Metrics are optional.
type Deps struct {
	Requests        Repository
	Users           identity.Repository
	Hospitals       *hospital.Service
	Settings        settings.Provider
	Gateway         *push.Gateway
	Templates       *push.TemplateEngine
	Events          events.Publisher
	Metrics         *metrics.Metrics
	Tx              TxFunc
	DefaultRadiusKm float64
	Logger          zerolog.Logger
}

// Service drives the SOS request lifecycle.
type Service struct {
	requests  Repository
	users     identity.Repository
	hospitals *hospital.Service
	settings  settings.Provider
	gateway   *push.Gateway
	templates *push.TemplateEngine
	events    events.Publisher
	metrics   *metrics.Metrics
	tx        TxFunc
	radiusKm  float64
	logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		requests:  d.Requests,
		users:     d.Users,
		hospitals: d.Hospitals,
		settings:  d.Settings,
		gateway:   d.Gateway,
		templates: d.Templates,
		events:    d.Events,
		metrics:   d.Metrics,
		tx:        d.Tx,
		radiusKm:  d.DefaultRadiusKm,
		logger:    d.Logger.With().Str("service", "sos").Logger(),
	}
	if s.templates == nil {
		s.templates = push.NewTemplateEngine()
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.tx == nil {
		s.tx = noTx
	}
	if !settings.ValidPositive(s.radiusKm) {
		s.radiusKm = DefaultRadiusKm
	}
	return s
}

// Create records a new active request for the patient and notifies the
// compatible donors inside the configured radius, nearest first.
//
// A non-nil result may come back together with an error: the request was
// stored but donors could not be matched (INVALID_BLOOD_TYPE when the type
// has no compatible donors, or a failed donor lookup).
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateInput) (*CreateResult, error) {
	if !actor.Is(identity.RolePatient) {
		return nil, apperr.Forbidden("only patients can raise an sos request")
	}
	if !in.Kind.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "kind must be blood or organ")
	}
	if err := in.Location.Validate(); err != nil {
		return nil, apperr.Validation(apperr.CodeInvalidCoordinates, err.Error())
	}

	patient, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	bt := in.BloodType
	if bt == nil || *bt == "" {
		bt = patient.BloodType
	}
	if bt == nil || *bt == "" {
		return nil, apperr.Validation(apperr.CodeMissingBloodType, "a blood type is required and the patient profile has none")
	}
	if parsed, ok := blood.Parse(string(*bt)); ok {
		bt = &parsed
	}

	radius, err := s.settings.GetFloat(ctx, settings.KeySosRadiusKm, s.radiusKm)
	if err != nil {
		s.logger.Warn().Err(err).Float64("radius_km", radius).Msg("reading sos radius failed, using default")
	}
	if !settings.ValidPositive(radius) {
		s.logger.Warn().Float64("radius_km", radius).Msg("sos radius is not a positive finite number, using default")
		radius = s.radiusKm
	}

	req := &Request{
		PatientID:      patient.ID,
		Kind:           in.Kind,
		BloodType:      bt,
		Location:       in.Location,
		SearchRadiusKm: radius,
		Description:    in.Description,
		Status:         StatusActive,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, req); err != nil {
			return err
		}
		return s.users.UpdateLocation(ctx, patient.ID, in.Location)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SosTransition("create", string(StatusActive))
	s.publish(ctx, events.SosCreated, req.ID, actor.UserID, map[string]any{
		"kind":       req.Kind,
		"blood_type": string(*bt),
		"radius_km":  radius,
	})

	res := &CreateResult{Request: req}
	compatible := blood.CompatibleDonors(*bt)
	if len(compatible) == 0 {
		s.logger.Warn().Str("sos_id", req.ID.String()).Str("blood_type", string(*bt)).Msg("no compatible donor types, skipping notification")
		return res, apperr.Validation(apperr.CodeInvalidBloodType, "blood type "+string(*bt)+" has no compatible donors").
			WithDetail("sos_id", req.ID.String())
	}

	box := geo.BoundingBox(in.Location, radius)
	donors, err := s.users.FindDonorsByBloodTypes(ctx, compatible, &box)
	if err != nil {
		s.logger.Error().Err(err).Str("sos_id", req.ID.String()).Msg("donor lookup failed after sos creation")
		return res, fmt.Errorf("find donors for sos %s: %w", req.ID, err)
	}

	byID := make(map[uuid.UUID]identity.DonorCandidate, len(donors))
	candidates := make([]geo.Candidate, 0, len(donors))
	for _, d := range donors {
		if d.ID == patient.ID {
			continue
		}
		byID[d.ID] = d
		candidates = append(candidates, geo.Candidate{ID: d.ID, Location: d.Location})
	}
	matches := geo.FindWithinRadius(in.Location, radius, candidates)
	res.DonorsCount = len(matches)
	if len(matches) == 0 {
		s.logger.Info().Str("sos_id", req.ID.String()).Float64("radius_km", radius).Msg("no donors in range")
		return res, nil
	}

	recipients := make([]push.Recipient, len(matches))
	for i, m := range matches {
		recipients[i] = push.Recipient{UserID: m.ID, Token: byID[m.ID].PushToken}
	}

	bloodLabel := ""
	if req.Kind == KindBlood {
		bloodLabel = " of type " + string(*bt)
	}
	title, body, err := s.templates.Render(push.TemplateSosRequest, map[string]string{
		"kind":        string(req.Kind),
		"blood_label": bloodLabel,
	})
	if err != nil {
		return res, fmt.Errorf("render sos notification: %w", err)
	}
	data := map[string]string{
		"type":         "sos_request",
		"sos_id":       req.ID.String(),
		"sos_type":     string(req.Kind),
		"patient_id":   patient.ID.String(),
		"patient_name": patient.Name,
		"blood_type":   string(*bt),
		"latitude":     strconv.FormatFloat(in.Location.Latitude, 'f', -1, 64),
		"longitude":    strconv.FormatFloat(in.Location.Longitude, 'f', -1, 64),
	}

	res.Notifications = s.gateway.SendBulk(ctx, recipients, title, body, data)
	identity.InvalidateTokens(ctx, s.users, res.Notifications.RecipientsToInvalidate, s.logger)

	s.logger.Info().
		Str("sos_id", req.ID.String()).
		Int("donors", res.DonorsCount).
		Int("delivered", res.Notifications.SuccessCount).
		Msg("sos request created")
	return res, nil
}

// Accept assigns the donor and the hospital nearest to the request, moving
// it from active to pending. Only one of several concurrent accepts wins;
// the others get a state_conflict error.
func (s *Service) Accept(ctx context.Context, actor identity.Actor, id uuid.UUID) (*AcceptanceResult, error) {
	if !actor.Is(identity.RoleDonor) {
		return nil, apperr.Forbidden("only donors can accept an sos request")
	}
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PatientID == actor.UserID {
		return nil, apperr.Forbidden("a patient cannot accept their own request")
	}
	t, err := Next(req.Status, EventAccept)
	if err != nil {
		return nil, err
	}

	nearest, err := s.hospitals.FindNearest(ctx, req.Location)
	if err != nil {
		return nil, err
	}

	updated, err := s.requests.Apply(ctx, id, t, &Assignment{DonorID: actor.UserID, HospitalID: nearest.Hospital.ID})
	if err != nil {
		return nil, err
	}
	s.metrics.SosTransition(string(EventAccept), string(updated.Status))
	s.publish(ctx, events.SosAccepted, id, actor.UserID, map[string]any{
		"donor_id":    actor.UserID.String(),
		"hospital_id": nearest.Hospital.ID.String(),
	})

	h := nearest.Hospital
	res := &AcceptanceResult{
		Request:            updated,
		Hospital:           h,
		HospitalDistanceKm: geo.RoundKm(nearest.DistanceKm),
	}

	patient := s.loadUser(ctx, updated.PatientID)
	donor := s.loadUser(ctx, actor.UserID)
	res.Patient, res.Donor = contactOf(patient, updated.PatientID), contactOf(donor, actor.UserID)

	data := map[string]string{
		"type":             "sos_accepted",
		"sos_id":           id.String(),
		"hospital_id":      h.ID.String(),
		"hospital_name":    h.Name,
		"hospital_address": h.Address,
		"hospital_phone":   deref(h.Phone),
	}
	tplData := map[string]string{"hospital_name": h.Name}

	patientData := withEntries(data, "donor_name", res.Donor.Name)
	donorData := withEntries(data, "patient_name", res.Patient.Name, "patient_phone", deref(res.Patient.Phone))
	res.PatientNotification = s.notify(ctx, patient, push.TemplateSosAcceptedPatient, tplData, patientData)
	res.DonorNotification = s.notify(ctx, donor, push.TemplateSosAcceptedDonor, tplData, donorData)

	s.logger.Info().
		Str("sos_id", id.String()).
		Str("donor_id", actor.UserID.String()).
		Str("hospital_id", h.ID.String()).
		Msg("sos request accepted")
	return res, nil
}

// CompleteOperation records a successful operation at the assigned hospital.
func (s *Service) CompleteOperation(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OperationResult, error) {
	return s.finishOperation(ctx, actor, id, EventCompleteOperation)
}

// CancelOperation records a failed operation. The request becomes cancelled.
func (s *Service) CancelOperation(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OperationResult, error) {
	return s.finishOperation(ctx, actor, id, EventCancelOperation)
}

func (s *Service) finishOperation(ctx context.Context, actor identity.Actor, id uuid.UUID, event Event) (*OperationResult, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := Next(req.Status, event)
	if err != nil {
		return nil, err
	}
	h, err := s.authorizeHospital(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	updated, err := s.requests.Apply(ctx, id, t, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.SosTransition(string(event), string(updated.Status))

	name, tpl, msgType := events.SosOperationCompleted, push.TemplateOperationCompleted, "sos_operation_completed"
	if event == EventCancelOperation {
		name, tpl, msgType = events.SosOperationCancelled, push.TemplateOperationCancelled, "sos_operation_cancelled"
	}
	s.publish(ctx, name, id, actor.UserID, map[string]any{"hospital_id": h.ID.String()})

	data := map[string]string{
		"type":          msgType,
		"sos_id":        id.String(),
		"hospital_id":   h.ID.String(),
		"hospital_name": h.Name,
	}
	tplData := map[string]string{"hospital_name": h.Name}

	res := &OperationResult{Request: updated}
	res.PatientNotification = s.notify(ctx, s.loadUser(ctx, updated.PatientID), tpl, tplData, data)
	if updated.AcceptedDonorID != nil {
		res.DonorNotification = s.notify(ctx, s.loadUser(ctx, *updated.AcceptedDonorID), tpl, tplData, data)
	}

	s.logger.Info().Str("sos_id", id.String()).Str("event", string(event)).Msg("sos operation finished")
	return res, nil
}

// authorizeHospital allows admins and the staff account owning the
// hospital the request was assigned to.
func (s *Service) authorizeHospital(ctx context.Context, actor identity.Actor, req *Request) (*hospital.Hospital, error) {
	if req.HospitalID == nil {
		return nil, apperr.StateConflict("sos request has no assigned hospital")
	}
	if !actor.Is(identity.RoleHospitalStaff, identity.RoleAdmin) {
		return nil, apperr.Forbidden("only hospital staff can report operation outcomes")
	}
	h, err := s.hospitals.Get(ctx, *req.HospitalID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(identity.RoleAdmin) && h.OwnerUserID != actor.UserID {
		return nil, apperr.Forbidden("the request is assigned to another hospital").
			WithDetail("hospital_id", h.ID.String())
	}
	return h, nil
}

// Cancel withdraws a request nobody has accepted yet. Only the patient who
// raised it or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(identity.RoleAdmin) && req.PatientID != actor.UserID {
		return nil, apperr.Forbidden("only the patient who raised the request can cancel it")
	}
	t, err := Next(req.Status, EventCancel)
	if err != nil {
		return nil, err
	}
	updated, err := s.requests.Apply(ctx, id, t, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.SosTransition(string(EventCancel), string(updated.Status))
	s.publish(ctx, events.SosCancelled, id, actor.UserID, nil)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.requests.GetByID(ctx, id)
}

// AvailableForDonor lists active requests the donor's blood can serve and
// whose own search radius reaches the donor, newest first. A donor without
// a location or blood type gets an empty list.
func (s *Service) AvailableForDonor(ctx context.Context, actor identity.Actor) ([]Available, error) {
	if !actor.Is(identity.RoleDonor) {
		return nil, apperr.Forbidden("only donors can list available requests")
	}
	donor, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	out := []Available{}
	if donor.Location == nil || donor.BloodType == nil {
		return out, nil
	}
	reqs, err := s.requests.ListActive(ctx, blood.CanDonateTo(*donor.BloodType))
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		if r.PatientID == donor.ID {
			continue
		}
		d := geo.DistanceKm(*donor.Location, r.Location)
		if d <= r.SearchRadiusKm {
			out = append(out, Available{Request: r, DistanceKm: geo.RoundKm(d)})
		}
	}
	return out, nil
}

// NewestAvailableForDonor returns the most recent request AvailableForDonor
// would list, or nil.
func (s *Service) NewestAvailableForDonor(ctx context.Context, actor identity.Actor) (*Request, error) {
	avail, err := s.AvailableForDonor(ctx, actor)
	if err != nil || len(avail) == 0 {
		return nil, err
	}
	return avail[0].Request, nil
}

// LatestActiveForPatient returns the patient's newest active request, or nil.
func (s *Service) LatestActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Request, error) {
	return s.requests.LatestActiveForPatient(ctx, patientID)
}

func (s *Service) ListForPatient(ctx context.Context, actor identity.Actor, status *Status, p pagination.Params) (*pagination.Page[*Request], error) {
	if !actor.Is(identity.RolePatient) {
		return nil, apperr.Forbidden("only patients have sos requests")
	}
	items, total, err := s.requests.ListForPatient(ctx, actor.UserID, status, p)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}

// DonationHistory pages the requests the donor accepted.
func (s *Service) DonationHistory(ctx context.Context, actor identity.Actor, status *Status, p pagination.Params) (*pagination.Page[*Request], error) {
	if !actor.Is(identity.RoleDonor) {
		return nil, apperr.Forbidden("only donors have a donation history")
	}
	items, total, err := s.requests.ListForDonor(ctx, actor.UserID, status, p)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}

func (s *Service) Details(ctx context.Context, id uuid.UUID) (*Details, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Details{Request: req}
	if u := s.loadUser(ctx, req.PatientID); u != nil {
		c := u.Contact()
		d.Patient = &c
	}
	if req.AcceptedDonorID != nil {
		if u := s.loadUser(ctx, *req.AcceptedDonorID); u != nil {
			c := u.Contact()
			d.Donor = &c
		}
	}
	if req.HospitalID != nil {
		h, err := s.hospitals.Get(ctx, *req.HospitalID)
		if err != nil {
			return nil, err
		}
		d.Hospital = h
	}
	return d, nil
}

// CommunicationInfo shares contact details between the patient and the
// accepted donor once a request has been accepted.
func (s *Service) CommunicationInfo(ctx context.Context, actor identity.Actor, id uuid.UUID) (*CommunicationInfo, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Accepted() {
		return nil, apperr.StateConflict("sos request has not been accepted yet")
	}
	if actor.UserID != req.PatientID && actor.UserID != *req.AcceptedDonorID {
		return nil, apperr.Forbidden("only the patient and the accepted donor can see contact details")
	}

	patient, err := s.users.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	donor, err := s.users.GetByID(ctx, *req.AcceptedDonorID)
	if err != nil {
		return nil, err
	}
	h, err := s.hospitals.Get(ctx, *req.HospitalID)
	if err != nil {
		return nil, err
	}
	return &CommunicationInfo{
		Patient:  patient.Contact(),
		Donor:    donor.Contact(),
		Hospital: HospitalContact{ID: h.ID, Name: h.Name, Phone: h.Phone, Address: h.Address},
	}, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{ByStatus: counts}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}

// Recent returns the newest requests, up to limit.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Request, error) {
	return s.requests.ListRecent(ctx, limit)
}

// notify sends one templated push to u and clears u's token when the
// provider reports it permanently invalid. A nil user yields a no_token
// outcome.
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

// loadUser is used after a committed transition, where a failed lookup must
// only cost the notification.
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
		s.logger.Warn().Err(err).Str("event", name).Str("sos_id", id.String()).Msg("publish event failed")
	}
}

func contactOf(u *identity.User, id uuid.UUID) identity.Contact {
	if u == nil {
		return identity.Contact{ID: id}
	}
	return u.Contact()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// withEntries copies base and adds alternating key/value pairs.
func withEntries(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}
