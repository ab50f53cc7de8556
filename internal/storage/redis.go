package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 3 * time.Second

// RedisStorage keeps each session snapshot as a JSON string and a sorted set
// of session ids scored by last update, for listing.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage connects lazily; Init pings the server. A zero ttl keeps
// keys forever.
func NewRedisStorage(addr, password string, db int, prefix string, ttl time.Duration) *RedisStorage {
	return NewRedisStorageFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix, ttl)
}

func NewRedisStorageFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	if prefix == "" {
		prefix = "chat"
	}
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStorage) sessionKey(id string) string { return r.prefix + ":session:" + id }
func (r *RedisStorage) indexKey() string          { return r.prefix + ":sessions" }

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (r *RedisStorage) Init() error {
	ctx, cancel := opContext()
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	logger.Infof("Redis storage initialized (%s)", r.client.Options().Addr)
	return nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// Backup asks the server for a background RDB save.
func (r *RedisStorage) Backup() error {
	ctx, cancel := opContext()
	defer cancel()
	return r.client.BgSave(ctx).Err()
}

func (r *RedisStorage) SaveSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", ErrInvalidData)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	ctx, cancel := opContext()
	defer cancel()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(session.UpdatedAt.UnixMilli()),
			Member: session.ID,
		})
		return nil
	})
	return err
}

func (r *RedisStorage) GetSession(sessionID string) (*model.Session, error) {
	ctx, cancel := opContext()
	defer cancel()

	data, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if session.Messages == nil {
		session.Messages = []model.Message{}
	}
	return &session, nil
}

func (r *RedisStorage) DeleteSession(sessionID string) error {
	ctx, cancel := opContext()
	defer cancel()

	n, err := r.client.Del(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return err
	}
	r.unindex(ctx, sessionID)
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// unindex drops id from the listing index. A failure leaves a dangling id,
// which ListSessions prunes later, so it is logged rather than returned.
func (r *RedisStorage) unindex(ctx context.Context, id string) {
	if err := r.client.ZRem(ctx, r.indexKey(), id).Err(); err != nil {
		logger.WithFields(logger.Fields{
			"session_id": id,
			"error":      err,
		}).Warn("failed to remove session from redis index")
	}
}

// ListSessions walks the index newest first. Ids whose snapshot expired are
// pruned from the index on the way.
func (r *RedisStorage) ListSessions() ([]*SessionSummary, error) {
	ctx, cancel := opContext()
	defer cancel()

	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*SessionSummary, 0, len(ids))
	for _, id := range ids {
		session, err := r.GetSession(id)
		if errors.Is(err, ErrSessionNotFound) {
			r.unindex(ctx, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(session))
	}
	sortByRecent(out)
	return out, nil
}

func (r *RedisStorage) GetMessages(sessionID string) ([]model.Message, error) {
	session, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}
