package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{KeySosRadiusKm: 25}
	v, err := p.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 25.0, v)

	v, err = p.GetFloat(context.Background(), "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock, time.Second, zerolog.Nop())
}

func TestStore_GetFloat(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM settings WHERE key = \\$1").
		WithArgs(KeySosRadiusKm).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("15.5"))

	v, err := store.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 15.5, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetFloat_MissingUsesDefault(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(KeySosRadiusKm).
		WillReturnError(pgx.ErrNoRows)

	v, err := store.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestStore_GetFloat_UnparseableUsesDefault(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(KeySosRadiusKm).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("ten"))

	v, err := store.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestStore_GetFloat_NonPositiveOrNonFiniteUsesDefault(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "+Inf", "-Inf", "0", "-5"} {
		t.Run(raw, func(t *testing.T) {
			mock, store := newMockStore(t)
			mock.ExpectQuery("SELECT value FROM settings").
				WithArgs(KeySosRadiusKm).
				WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(raw))

			v, err := store.GetFloat(context.Background(), KeySosRadiusKm, 10)
			require.NoError(t, err)
			assert.Equal(t, 10.0, v)
		})
	}
}

func TestStore_GetFloat_QueryErrorReturnsDefaultAndError(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(KeySosRadiusKm).
		WillReturnError(errors.New("connection reset"))

	v, err := store.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.Error(t, err)
	assert.Equal(t, 10.0, v)
}

func TestStore_Set(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectExec("INSERT INTO settings").
		WithArgs(KeySosRadiusKm, "20", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Set(context.Background(), KeySosRadiusKm, "20", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()
	desc := "radius"
	mock.ExpectQuery("SELECT key, value, description, updated_at FROM settings").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "description", "updated_at"}).
			AddRow(KeySosRadiusKm, "10", &desc, now))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "10", list[0].Value)
	assert.Equal(t, "radius", *list[0].Description)
}

// deadlineDB records whether each query ran under a deadline.
type deadlineDB struct {
	pgxmock.PgxPoolIface
	deadlines []bool
}

func (d *deadlineDB) record(ctx context.Context) {
	_, ok := ctx.Deadline()
	d.deadlines = append(d.deadlines, ok)
}

func (d *deadlineDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.record(ctx)
	return d.PgxPoolIface.Exec(ctx, sql, args...)
}

func (d *deadlineDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.record(ctx)
	return d.PgxPoolIface.Query(ctx, sql, args...)
}

func (d *deadlineDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.record(ctx)
	return d.PgxPoolIface.QueryRow(ctx, sql, args...)
}

func TestStore_QueriesHaveDeadline(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	database := &deadlineDB{PgxPoolIface: mock}
	store := NewStore(database, time.Second, zerolog.Nop())
	ctx := context.Background()

	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs(KeySosRadiusKm).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("12"))
	mock.ExpectExec("INSERT INTO settings").
		WithArgs(KeySosRadiusKm, "20", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT key, value, description, updated_at FROM settings").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "description", "updated_at"}))

	_, err = store.GetFloat(ctx, KeySosRadiusKm, 10)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeySosRadiusKm, "20", nil))
	_, err = store.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true}, database.deadlines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// countingProvider counts lookups that reach it.
type countingProvider struct {
	value float64
	err   error
	calls int
}

func (p *countingProvider) GetFloat(_ context.Context, _ string, def float64) (float64, error) {
	p.calls++
	if p.err != nil {
		return def, p.err
	}
	return p.value, nil
}

func setupCache(t *testing.T, next Provider) (*miniredis.Miniredis, *CachedProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewCachedProvider(client, next, time.Minute, zerolog.Nop())
}

func TestCachedProvider_ReadThrough(t *testing.T) {
	next := &countingProvider{value: 12}
	mr, c := setupCache(t, next)
	ctx := context.Background()

	v, err := c.GetFloat(ctx, KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	v, err = c.GetFloat(ctx, KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, 1, next.calls, "second read is served from cache")

	cached, err := mr.Get(cacheKeyPrefix + KeySosRadiusKm)
	require.NoError(t, err)
	assert.Equal(t, "12", cached)
	assert.True(t, mr.TTL(cacheKeyPrefix+KeySosRadiusKm) > 0)
}

func TestCachedProvider_NonFiniteCachedValueIsReloaded(t *testing.T) {
	next := &countingProvider{value: 12}
	mr, c := setupCache(t, next)
	require.NoError(t, mr.Set(cacheKeyPrefix+KeySosRadiusKm, "NaN"))

	v, err := c.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, 1, next.calls)
}

func TestCachedProvider_Invalidate(t *testing.T) {
	next := &countingProvider{value: 12}
	_, c := setupCache(t, next)
	ctx := context.Background()

	_, _ = c.GetFloat(ctx, KeySosRadiusKm, 10)
	require.NoError(t, c.Invalidate(ctx, KeySosRadiusKm))
	next.value = 30

	v, err := c.GetFloat(ctx, KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)
	assert.Equal(t, 2, next.calls)
}

func TestCachedProvider_RedisDownFallsThrough(t *testing.T) {
	next := &countingProvider{value: 7}
	mr, c := setupCache(t, next)
	mr.Close()

	v, err := c.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestCachedProvider_UnderlyingErrorNotCached(t *testing.T) {
	next := &countingProvider{err: errors.New("db down")}
	mr, c := setupCache(t, next)

	v, err := c.GetFloat(context.Background(), KeySosRadiusKm, 10)
	require.Error(t, err)
	assert.Equal(t, 10.0, v)
	assert.False(t, mr.Exists(cacheKeyPrefix+KeySosRadiusKm))
}
