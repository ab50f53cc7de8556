package storage

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"engagement-engine/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedHook answers commands in-process so no server is needed.
type scriptedHook struct {
	index   []string
	zremErr error
}

func (h *scriptedHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *scriptedHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch c := cmd.(type) {
		case *redis.IntCmd:
			switch cmd.Name() {
			case "del":
				c.SetVal(1)
				return nil
			case "zrem":
				c.SetErr(h.zremErr)
				return h.zremErr
			}
		case *redis.StringSliceCmd:
			c.SetVal(h.index)
			return nil
		case *redis.StringCmd:
			c.SetErr(redis.Nil)
			return redis.Nil
		}
		return next(ctx, cmd)
	}
}

func (h *scriptedHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, logger.InitWithOutput("info", "text", &buf))
	t.Cleanup(func() { _ = logger.InitWithOutput("info", "text", os.Stderr) })
	return &buf
}

func newScriptedRedis(t *testing.T, hook *scriptedHook) *RedisStorage {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { client.Close() })
	return NewRedisStorageFromClient(client, "t", 0)
}

func TestRedisStorage_DeleteLogsIndexFailure(t *testing.T) {
	logs := captureLogs(t)
	store := newScriptedRedis(t, &scriptedHook{zremErr: errors.New("READONLY replica")})

	require.NoError(t, store.DeleteSession("s1"))
	assert.Contains(t, logs.String(), "failed to remove session from redis index")
	assert.Contains(t, logs.String(), "READONLY replica")
	assert.Contains(t, logs.String(), "session_id=s1")
}

func TestRedisStorage_ListPrunesExpiredIDs(t *testing.T) {
	logs := captureLogs(t)
	store := newScriptedRedis(t, &scriptedHook{
		index:   []string{"gone-1", "gone-2"},
		zremErr: errors.New("connection reset"),
	})

	list, err := store.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("failed to remove session from redis index")))
}

func TestRedisStorage_IndexRemovalQuietOnSuccess(t *testing.T) {
	logs := captureLogs(t)
	store := newScriptedRedis(t, &scriptedHook{index: []string{"gone"}})

	list, err := store.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, store.DeleteSession("s1"))
	assert.NotContains(t, logs.String(), "redis index")
}
