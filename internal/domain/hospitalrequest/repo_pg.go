package hospitalrequest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rescue/rescue/internal/domain/identity"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/db"
)

type requestRepoPG struct {
	db      db.DB
	timeout time.Duration
}

func NewRepo(database db.DB, timeout time.Duration) Repository {
	return &requestRepoPG{db: database, timeout: timeout}
}

func (r *requestRepoPG) conn(ctx context.Context) db.DB {
	return db.Conn(ctx, r.db)
}

const requestCols = `id, hospital_id, requester_user_id, requester_role, sos_request_id, status,
	requester_notes, hospital_notes, created_at, updated_at`

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospital_requests (id, hospital_id, requester_user_id, requester_role, sos_request_id, status, requester_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		req.ID, req.HospitalID, req.RequesterID, string(req.RequesterRole), req.SosRequestID, string(req.Status), req.RequesterNotes,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return duplicatePending(req.HospitalID)
	}
	if err != nil {
		return fmt.Errorf("create hospital request: %w", err)
	}
	return nil
}

func duplicatePending(hospitalID uuid.UUID) error {
	return apperr.Duplicate(apperr.CodeDuplicatePendingRequest, "a pending request to this hospital already exists").
		WithDetail("hospital_id", hospitalID.String())
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM hospital_requests WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("hospital request not found").WithDetail("request_id", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get hospital request %s: %w", id, err)
	}
	return req, nil
}

func (r *requestRepoPG) FindPending(ctx context.Context, hospitalID, requesterID uuid.UUID, role identity.Role) (*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM hospital_requests
		WHERE hospital_id = $1 AND requester_user_id = $2 AND requester_role = $3 AND status = 'pending'`,
		hospitalID, requesterID, string(role)))
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending hospital request: %w", err)
	}
	return req, nil
}

func (r *requestRepoPG) Decide(ctx context.Context, id uuid.UUID, status Status, notes *string) (*Request, error) {
	bctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	req, err := scanRequest(r.conn(bctx).QueryRow(bctx, `
		UPDATE hospital_requests SET status = $2, hospital_notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestCols,
		id, string(status), notes))
	if err == nil {
		return req, nil
	}
	if !db.IsNoRows(err) {
		return nil, fmt.Errorf("decide hospital request %s: %w", id, err)
	}

	current, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, alreadyDecided(current)
}

func alreadyDecided(req *Request) error {
	return apperr.StateConflict("hospital request was already "+string(req.Status)).
		WithDetail("status", string(req.Status))
}

func (r *requestRepoPG) ListForHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Request, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM hospital_requests WHERE hospital_id = $1 ORDER BY created_at DESC`, hospitalID)
}

func (r *requestRepoPG) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*Request, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM hospital_requests WHERE requester_user_id = $1 ORDER BY created_at DESC`, requesterID)
}

func (r *requestRepoPG) list(ctx context.Context, sql string, id uuid.UUID) ([]*Request, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("list hospital requests: %w", err)
	}
	defer rows.Close()

	var items []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital request: %w", err)
		}
		items = append(items, req)
	}
	return items, rows.Err()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		req    Request
		role   string
		status string
	)
	err := row.Scan(&req.ID, &req.HospitalID, &req.RequesterID, &role, &req.SosRequestID, &status,
		&req.RequesterNotes, &req.HospitalNotes, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.RequesterRole = identity.Role(role)
	req.Status = Status(status)
	return &req, nil
}
