package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashureev/cityline/internal/domain"
)

const (
	// Redis key prefix for sessions.
	sessionKeyPrefix = "cityline:session:"
	// Default TTL for session keys.
	defaultRedisTTL = 24 * time.Hour
	scanBatch       = 100
)

// RedisStore implements Backend with one JSON value per session. Save
// uses WATCH/MULTI/EXEC so concurrent writers from different processes
// surface as ErrVersionConflict.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Backend = (*RedisStore)(nil)

// NewRedis creates a Redis-backed session backend. Keys expire after ttl
// of inactivity.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Load implements Backend. The key TTL is refreshed on read.
func (r *RedisStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	key := r.key(id)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	sess, err := decodeSession(val)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	// TTL refresh failures are not fatal for a read.
	_ = r.client.Expire(ctx, key, r.ttl).Err()
	return sess, nil
}

// Save implements Backend.
func (r *RedisStore) Save(ctx context.Context, sess *domain.Session) error {
	key := r.key(sess.ID)
	next := sess.Version + 1

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		var stored int64
		val, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			cur, decErr := decodeSession(val)
			if decErr != nil {
				return decErr
			}
			stored = cur.Version
		}
		if stored != sess.Version {
			return ErrVersionConflict
		}

		out := cloneSession(sess)
		out.Version = next
		payload, err := json.Marshal(out)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}

	sess.Version = next
	return nil
}

// Summary implements Backend by scanning the session keyspace.
func (r *RedisStore) Summary(ctx context.Context, activeSince time.Time) (Summary, error) {
	sum := Summary{IntentDistribution: map[string]int{}}
	err := r.each(ctx, func(_ string, sess *domain.Session) error {
		sum.add(sess, activeSince)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// DeleteIdle implements Backend. Key expiry normally removes idle
// sessions first; this covers a TTL configured longer than the sweep.
func (r *RedisStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.each(ctx, func(key string, sess *domain.Session) error {
		if !sess.UpdatedAt.Before(cutoff) {
			return nil
		}
		deleted, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
		n += deleted
		return nil
	})
	return n, err
}

func (r *RedisStore) each(ctx context.Context, fn func(key string, sess *domain.Session) error) error {
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		sess, err := decodeSession(val)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(key, sess); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan sessions: %w", err)
	}
	return nil
}

// Ping implements Backend.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Backend.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(id string) string {
	return sessionKeyPrefix + id
}

func decodeSession(raw []byte) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess.Slots == nil {
		sess.Slots = domain.Slots{}
	}
	return &sess, nil
}
