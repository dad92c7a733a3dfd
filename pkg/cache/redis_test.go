package cache

import (
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/pkg/config"
)

func TestNewRedisPings(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	host, port, err := net.SplitHostPort(server.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	client, err := NewRedis(config.RedisConfig{Host: host, Port: p})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, server.Addr(), client.Options().Addr)
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(server.Addr())
	p, _ := strconv.Atoi(port)
	server.Close()

	_, err = NewRedis(config.RedisConfig{Host: host, Port: p})
	assert.Error(t, err)
}
