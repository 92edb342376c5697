//go:build !redistest
// +build !redistest

package redisutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// CreateTestRedis starts an in-process miniredis server for the duration of
// the test and returns its connection URL. The server is closed via
// t.Cleanup.
func CreateTestRedis(ctx context.Context, t *testing.T) string {
	t.Helper()
	redisServer, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(redisServer.Close)
	return fmt.Sprintf("redis://%s/0", redisServer.Addr())
}
