package sos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/db"
	"github.com/rescue/rescue/pkg/pagination"
)

type sosRepoPG struct {
	db      db.DB
	timeout time.Duration
}

func NewRepo(database db.DB, timeout time.Duration) Repository {
	return &sosRepoPG{db: database, timeout: timeout}
}

func (r *sosRepoPG) conn(ctx context.Context) db.DB {
	return db.Conn(ctx, r.db)
}

const sosCols = `id, patient_id, kind, blood_type, latitude, longitude, search_radius_km, description,
	status, operation_status, accepted_donor_id, hospital_id, created_at, updated_at`

func (r *sosRepoPG) Create(ctx context.Context, req *Request) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = StatusActive
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO sos_requests (id, patient_id, kind, blood_type, latitude, longitude, search_radius_km, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		req.ID, req.PatientID, string(req.Kind), req.BloodType.Nullable(), req.Location.Latitude, req.Location.Longitude,
		req.SearchRadiusKm, req.Description, string(req.Status),
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create sos request: %w", err)
	}
	return nil
}

func (r *sosRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+sosCols+` FROM sos_requests WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("sos request not found").WithDetail("sos_id", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get sos request %s: %w", id, err)
	}
	return req, nil
}

func (r *sosRepoPG) Apply(ctx context.Context, id uuid.UUID, t Transition, a *Assignment) (*Request, error) {
	var donorID, hospitalID *uuid.UUID
	if a != nil {
		donorID, hospitalID = &a.DonorID, &a.HospitalID
	}
	var operation *string
	if t.Operation != nil {
		s := string(*t.Operation)
		operation = &s
	}

	bctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(bctx).QueryRow(bctx, `
		UPDATE sos_requests SET
			status = $3,
			operation_status = COALESCE($4, operation_status),
			accepted_donor_id = COALESCE($5, accepted_donor_id),
			hospital_id = COALESCE($6, hospital_id),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+sosCols,
		id, string(t.From), string(t.To), operation, donorID, hospitalID))
	if err == nil {
		return req, nil
	}
	if !db.IsNoRows(err) {
		return nil, fmt.Errorf("apply %s to sos request %s: %w", t.Event, id, err)
	}

	// lost the race or never existed
	current, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	_, nerr := Next(current.Status, t.Event)
	if nerr == nil {
		nerr = apperr.StateConflict("sos request changed concurrently").WithDetail("status", string(current.Status))
	}
	return nil, nerr
}

func (r *sosRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error) {
	return r.listBy(ctx, "patient_id", patientID, status, p)
}

func (r *sosRepoPG) ListForDonor(ctx context.Context, donorID uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error) {
	return r.listBy(ctx, "accepted_donor_id", donorID, status, p)
}

// listBy pages the requests whose column equals id. column is one of the
// two fixed names above, never caller input.
func (r *sosRepoPG) listBy(ctx context.Context, column string, id uuid.UUID, status *Status, p pagination.Params) ([]*Request, int, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	where := ` WHERE ` + column + ` = $1`
	args := []any{id}
	if status != nil {
		where += ` AND status = $2`
		args = append(args, string(*status))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sos_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sos requests: %w", err)
	}
	items, err := r.query(ctx, `SELECT `+sosCols+` FROM sos_requests`+where+` ORDER BY created_at DESC `+p.SQL(), args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *sosRepoPG) ListActive(ctx context.Context, types []blood.Type) ([]*Request, error) {
	if len(types) == 0 {
		return []*Request{}, nil
	}
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	return r.query(ctx, `
		SELECT `+sosCols+` FROM sos_requests
		WHERE status = 'active' AND blood_type = ANY($1)
		ORDER BY created_at DESC`, blood.Strings(types))
}

func (r *sosRepoPG) LatestActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+sosCols+` FROM sos_requests
		WHERE patient_id = $1 AND status = 'active'
		ORDER BY created_at DESC LIMIT 1`, patientID))
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest active sos request: %w", err)
	}
	return req, nil
}

func (r *sosRepoPG) ListRecent(ctx context.Context, limit int) ([]*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	return r.query(ctx, `SELECT `+sosCols+` FROM sos_requests ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *sosRepoPG) CountByStatus(ctx context.Context) (map[Status]int, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM sos_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sos requests by status: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		out[s] = 0
	}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan sos count: %w", err)
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}

func (r *sosRepoPG) query(ctx context.Context, sql string, args ...any) ([]*Request, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sos requests: %w", err)
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sos request: %w", err)
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		req    Request
		kind   string
		bt     *string
		status string
		opStat *string
	)
	err := row.Scan(&req.ID, &req.PatientID, &kind, &bt, &req.Location.Latitude, &req.Location.Longitude,
		&req.SearchRadiusKm, &req.Description, &status, &opStat, &req.AcceptedDonorID, &req.HospitalID,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Kind = Kind(kind)
	req.BloodType = blood.FromNullable(bt)
	req.Status = Status(status)
	if opStat != nil {
		os := OperationStatus(*opStat)
		req.OperationStatus = &os
	}
	return &req, nil
}
