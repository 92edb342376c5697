package colosseum

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/TomTaehoonKim/kroma/util/redisutil"
)

func newTestRedisClient(ctx context.Context, t *testing.T) redis.UniversalClient {
	t.Helper()
	url := redisutil.CreateTestRedis(ctx, t)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	return redis.NewClient(opts)
}

func TestRedisReplaySet_ContainsInsert(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(ctx, t)
	set := NewRedisReplaySet(client, "")

	digest := common.HexToHash("0x01")
	ok, err := set.Contains(ctx, digest)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, set.Insert(ctx, digest))

	ok, err = set.Contains(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)

	// Re-inserting an already-recorded digest is a no-op, not an error.
	require.NoError(t, set.Insert(ctx, digest))

	other := common.HexToHash("0x02")
	ok, err = set.Contains(ctx, other)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisReplaySet_DefaultKeyPrefix(t *testing.T) {
	set := NewRedisReplaySet(nil, "")
	require.Equal(t, "colosseum:replay:"+common.Hash{}.Hex(), set.key(common.Hash{}))
}
