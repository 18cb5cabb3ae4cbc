package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/apperr"
	"github.com/rescue/rescue/internal/platform/geo"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepo(mock, time.Second)
}

func ptr[T any](v T) *T { return &v }

func TestRepo_GetByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "phone", "role", "blood_type", "latitude", "longitude", "push_token", "created_at", "updated_at"}).
			AddRow(id, "Sara", ptr("sara@example.com"), ptr("+966500000000"), "donor", ptr("O-"), ptr(24.71), ptr(46.67), ptr("tok-1"), now, now))

	u, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleDonor, u.Role)
	require.NotNil(t, u.BloodType)
	assert.Equal(t, blood.ONeg, *u.BloodType)
	require.NotNil(t, u.Location)
	assert.Equal(t, 24.71, u.Location.Latitude)
	assert.Equal(t, "tok-1", u.Recipient().Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM users").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRepo_Create_DuplicateEmail(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "Omar", pgxmock.AnyArg(), pgxmock.AnyArg(), "patient", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &User{Name: "Omar", Role: RolePatient, Email: ptr("omar@example.com")})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicate))
}

func TestRepo_FindDonorsByBloodTypes_WithBox(t *testing.T) {
	mock, repo := newMockRepo(t)
	box := geo.BoundingBox(geo.LatLon{Latitude: 24.71, Longitude: 46.67}, 10)
	id := uuid.New()

	mock.ExpectQuery("FROM users (.+) blood_type = ANY\\(\\$1\\) AND latitude BETWEEN \\$2 AND \\$3").
		WithArgs([]string{"O-", "A+"}, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "blood_type", "latitude", "longitude", "push_token"}).
			AddRow(id, "Nora", "O-", 24.72, 46.67, "tok-n"))

	got, err := repo.FindDonorsByBloodTypes(context.Background(), []blood.Type{blood.ONeg, blood.APos}, &box)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, blood.ONeg, got[0].BloodType)
	assert.Equal(t, "tok-n", got[0].PushToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_FindDonorsByBloodTypes_EmptySetSkipsQuery(t *testing.T) {
	mock, repo := newMockRepo(t)
	got, err := repo.FindDonorsByBloodTypes(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateLocation_MissingUser(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE users SET latitude").
		WithArgs(id, 1.0, 2.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateLocation(context.Background(), id, geo.LatLon{Latitude: 1, Longitude: 2})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRepo_ClearPushToken_MatchesCurrentToken(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE users SET push_token = NULL (.+) AND push_token = \\$2").
		WithArgs(id, "stale").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.ClearPushToken(context.Background(), id, "stale"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CountByRole(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery("SELECT role, COUNT\\(\\*\\) FROM users GROUP BY role").
		WillReturnRows(pgxmock.NewRows([]string{"role", "count"}).AddRow("donor", 4).AddRow("patient", 2))

	got, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got[RoleDonor])
	assert.Equal(t, 2, got[RolePatient])
	assert.Equal(t, 0, got[RoleAdmin])
}
