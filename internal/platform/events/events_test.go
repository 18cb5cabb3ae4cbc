package events

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStreamPublisher_PublishAndRecent(t *testing.T) {
	_, client := setupTestRedis(t)
	p := NewRedisStreamPublisher(client, "test:events", 1000)
	ctx := context.Background()

	sosID := uuid.New()
	require.NoError(t, p.Publish(ctx, Event{Name: SosCreated, AggregateID: sosID, Payload: map[string]any{"donors_count": 1}}))
	require.NoError(t, p.Publish(ctx, Event{Name: SosAccepted, AggregateID: sosID}))

	n, err := client.XLen(ctx, "test:events").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, err := p.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SosAccepted, got[0].Name)
	assert.Equal(t, SosCreated, got[1].Name)
	assert.Equal(t, sosID, got[1].AggregateID)
	assert.False(t, got[1].OccurredAt.IsZero())
	assert.EqualValues(t, 1, got[1].Payload["donors_count"])
}

func TestRedisStreamPublisher_DefaultStream(t *testing.T) {
	_, client := setupTestRedis(t)
	p := NewRedisStreamPublisher(client, "", 0)

	require.NoError(t, p.Publish(context.Background(), Event{Name: SosCancelled}))
	n, err := client.XLen(context.Background(), DefaultStream).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisStreamPublisher_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	p := NewRedisStreamPublisher(client, "test:events", 0)
	mr.Close()

	err := p.Publish(context.Background(), Event{Name: SosCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd test:events")
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Name: SosCreated}))
}
