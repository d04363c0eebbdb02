package cache

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *Redis {
	t.Helper()
	if exec.Command("docker", "info").Run() != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFromClient(client)
}

type snapshot struct {
	XP    int64  `json:"xp"`
	Title string `json:"title"`
}

func TestRedis_SetGetDelete(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()
	key := StatsKey(42)

	var got snapshot
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, key, snapshot{XP: 850, Title: "Level 5"}, time.Minute))
	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, snapshot{XP: 850, Title: "Level 5"}, got)

	require.NoError(t, c.Delete(ctx, key, StatsKey(43)))
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrCacheMiss)
}

func TestRedis_TTLExpires(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", snapshot{XP: 1}, 50*time.Millisecond))
	require.Eventually(t, func() bool {
		var got snapshot
		return c.Get(ctx, "short", &got) == ErrCacheMiss
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEmptyKeyRejected(t *testing.T) {
	c := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer c.Close()

	assert.ErrorIs(t, c.Get(context.Background(), "", &snapshot{}), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(context.Background(), "", snapshot{}, time.Second), ErrCacheKeyEmpty)
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", snapshot{XP: 1}, time.Minute))
	assert.ErrorIs(t, c.Get(ctx, "k", &snapshot{}), ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestStatsKey(t *testing.T) {
	assert.Equal(t, "learnquest:stats:7", StatsKey(7))
}
