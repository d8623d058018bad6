package redisdb_test

import (
	"context"
	"net"
	"testing"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/pkg/config"
	"github.com/Nzyazin/miniwallet/pkg/redisdb"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	rdb, err := redisdb.ConnectRedis(context.Background(), config.RedisConfig{Host: host, Port: port}, logger.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	mr.Close()

	_, err = redisdb.ConnectRedis(context.Background(), config.RedisConfig{Host: host, Port: port}, logger.NewNop())
	assert.Error(t, err)
}
