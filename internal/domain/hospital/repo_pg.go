package hospital

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/db"
	"github.com/rescue/rescue/internal/platform/geo"
)

type hospitalRepoPG struct {
	db      db.DB
	timeout time.Duration
}

func NewRepo(database db.DB, timeout time.Duration) Repository {
	return &hospitalRepoPG{db: database, timeout: timeout}
}

func (r *hospitalRepoPG) conn(ctx context.Context) db.DB {
	return db.Conn(ctx, r.db)
}

const hospitalCols = `id, owner_user_id, name, address, phone, latitude, longitude, created_at, updated_at`

func (r *hospitalRepoPG) Create(ctx context.Context, h *Hospital) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	lat, lon := h.Location.Nullable()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospitals (id, owner_user_id, name, address, phone, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		h.ID, h.OwnerUserID, h.Name, h.Address, h.Phone, lat, lon,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Duplicate(apperr.CodeInvalidInput, "this staff account already owns a hospital")
	}
	if err != nil {
		return fmt.Errorf("create hospital: %w", err)
	}
	return nil
}

func (r *hospitalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return r.getOne(ctx, `SELECT `+hospitalCols+` FROM hospitals WHERE id = $1`, "hospital_id", id)
}

func (r *hospitalRepoPG) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*Hospital, error) {
	return r.getOne(ctx, `SELECT `+hospitalCols+` FROM hospitals WHERE owner_user_id = $1`, "owner_user_id", ownerID)
}

func (r *hospitalRepoPG) getOne(ctx context.Context, sql, field string, id uuid.UUID) (*Hospital, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	h, err := scanHospital(r.conn(ctx).QueryRow(ctx, sql, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("hospital not found").WithDetail(field, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get hospital by %s: %w", field, err)
	}
	return h, nil
}

func (r *hospitalRepoPG) ListWithLocation(ctx context.Context) ([]*Hospital, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+hospitalCols+` FROM hospitals
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	var out []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *hospitalRepoPG) Count(ctx context.Context) (int, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospitals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count hospitals: %w", err)
	}
	return n, nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var (
		h        Hospital
		lat, lon *float64
	)
	if err := row.Scan(&h.ID, &h.OwnerUserID, &h.Name, &h.Address, &h.Phone, &lat, &lon, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.Location = geo.FromNullable(lat, lon)
	return &h, nil
}
