package colosseum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
)

// RedisReplaySet is the shared, multi-process ReplaySet backend (spec §3,
// §4.4 step 7; see SPEC_FULL.md §4.6): every accepted proof's public-input
// digest is recorded permanently via SETNX-style semantics so that no two
// concurrent coordinator processes can both accept a proof for the same
// digest.
type RedisReplaySet struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ ReplaySet = (*RedisReplaySet)(nil)

// NewRedisReplaySet constructs a RedisReplaySet. keyPrefix namespaces the
// digest keys so the set can share a redis instance with other components.
func NewRedisReplaySet(client redis.UniversalClient, keyPrefix string) *RedisReplaySet {
	if keyPrefix == "" {
		keyPrefix = "colosseum:replay:"
	}
	return &RedisReplaySet{client: client, keyPrefix: keyPrefix}
}

func (r *RedisReplaySet) key(digest common.Hash) string {
	return fmt.Sprintf("%s%s", r.keyPrefix, digest.Hex())
}

// Contains reports whether digest has already been recorded.
func (r *RedisReplaySet) Contains(ctx context.Context, digest common.Hash) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(digest)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert records digest permanently. It is safe to call for a digest that
// is already present.
func (r *RedisReplaySet) Insert(ctx context.Context, digest common.Hash) error {
	return r.client.Set(ctx, r.key(digest), 1, 0).Err()
}
