package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/db"
	"github.com/rescue/rescue/internal/platform/geo"
)

type userRepoPG struct {
	db      db.DB
	timeout time.Duration
}

func NewRepo(database db.DB, timeout time.Duration) Repository {
	return &userRepoPG{db: database, timeout: timeout}
}

func (r *userRepoPG) conn(ctx context.Context) db.DB {
	return db.Conn(ctx, r.db)
}

const userCols = `id, name, email, phone, role, blood_type, latitude, longitude, push_token, created_at, updated_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	lat, lon := u.Location.Nullable()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, email, phone, role, blood_type, latitude, longitude, push_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.BloodType.Nullable(), lat, lon, u.PushToken,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Duplicate(apperr.CodeInvalidInput, "a user with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user not found").WithDetail("user_id", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepoPG) FindDonorsByBloodTypes(ctx context.Context, types []blood.Type, box *geo.Box) ([]DonorCandidate, error) {
	if len(types) == 0 {
		return []DonorCandidate{}, nil
	}
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, name, blood_type, latitude, longitude, push_token
		FROM users
		WHERE role = 'donor'
		  AND push_token IS NOT NULL AND push_token <> ''
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND blood_type = ANY($1)`
	args := []any{blood.Strings(types)}
	if box != nil {
		query += ` AND latitude BETWEEN $2 AND $3 AND longitude BETWEEN $4 AND $5`
		args = append(args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}
	query += ` ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find donors: %w", err)
	}
	defer rows.Close()

	var out []DonorCandidate
	for rows.Next() {
		var (
			c  DonorCandidate
			bt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &bt, &c.Location.Latitude, &c.Location.Longitude, &c.PushToken); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		c.BloodType = blood.Type(bt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donors: %w", err)
	}
	return out, nil
}

func (r *userRepoPG) UpdateLocation(ctx context.Context, id uuid.UUID, loc geo.LatLon) error {
	return r.exec(ctx, "update user location", id,
		`UPDATE users SET latitude = $2, longitude = $3, updated_at = NOW() WHERE id = $1`,
		id, loc.Latitude, loc.Longitude)
}

func (r *userRepoPG) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	return r.exec(ctx, "update push token", id,
		`UPDATE users SET push_token = $2, updated_at = NOW() WHERE id = $1`,
		id, token)
}

func (r *userRepoPG) ClearPushToken(ctx context.Context, id uuid.UUID, token string) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	// zero rows is fine: the user registered a new token meanwhile
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET push_token = NULL, updated_at = NOW() WHERE id = $1 AND push_token = $2`,
		id, token)
	if err != nil {
		return fmt.Errorf("clear push token: %w", err)
	}
	return nil
}

func (r *userRepoPG) CountByRole(ctx context.Context) (map[Role]int, error) {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()

	out := make(map[Role]int, len(Roles))
	for _, role := range Roles {
		out[role] = 0
	}
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan user count: %w", err)
		}
		out[Role(role)] = n
	}
	return out, rows.Err()
}

func (r *userRepoPG) exec(ctx context.Context, op string, id uuid.UUID, sql string, args ...any) error {
	ctx, cancel := db.Bound(ctx, r.timeout)
	defer cancel()

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found").WithDetail("user_id", id.String())
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u        User
		role     string
		bt       *string
		lat, lon *float64
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &bt, &lat, &lon, &u.PushToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.BloodType = blood.FromNullable(bt)
	u.Location = geo.FromNullable(lat, lon)
	return &u, nil
}
