package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	server, client := newMiniRedis(t)
	repo := NewCacheRepository(client, "leadflow", nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "dash:admin1:today", map[string]int{"total": 4}, time.Minute))
	assert.True(t, server.Exists("leadflow:dash:admin1:today"))

	var out map[string]int
	require.NoError(t, repo.Get(ctx, "dash:admin1:today", &out))
	assert.Equal(t, 4, out["total"])

	server.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "dash:admin1:today", &out)
	assert.True(t, appErrors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	server, client := newMiniRedis(t)
	repo := NewCacheRepository(client, "leadflow", nil)
	ctx := context.Background()

	for _, k := range []string{"dash:a", "dash:b", "report:a"} {
		require.NoError(t, repo.Set(ctx, k, 1, 0))
	}
	require.NoError(t, repo.DeleteByPattern(ctx, "dash:*"))

	assert.False(t, server.Exists("leadflow:dash:a"))
	assert.False(t, server.Exists("leadflow:dash:b"))
	assert.True(t, server.Exists("leadflow:report:a"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	var out int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
