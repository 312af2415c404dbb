package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// releaseScript deletes a lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionStore keeps sessions in redis so several API instances can share them.
// Session keys expire after the idle TTL; in-flight markers expire after the lock TTL.
type RedisSessionStore struct {
	client  *redis.Client
	prefix  string
	idleTTL time.Duration
	lockTTL time.Duration
}

// redisRecord carries the document bytes that the session JSON omits
type redisRecord struct {
	Session *model.Session `json:"session"`
	Content []byte         `json:"content,omitempty"`
}

func NewRedisSessionStore(cfg *config.RedisConfig, sessionCfg *config.SessionConfig) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisSessionStoreWithClient(client, cfg.KeyPrefix,
		time.Duration(sessionCfg.IdleMinutes)*time.Minute,
		time.Duration(sessionCfg.LockSeconds)*time.Second,
	), nil
}

func NewRedisSessionStoreWithClient(client *redis.Client, prefix string, idleTTL, lockTTL time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix, idleTTL: idleTTL, lockTTL: lockTTL}
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisSessionStore) lockKey(id string, op model.Operation) string {
	return s.prefix + "lock:" + id + ":" + string(op)
}

func encodeSession(session *model.Session) ([]byte, error) {
	rec := redisRecord{Session: session}
	if session.Document != nil {
		rec.Content = session.Document.Content
	}
	return json.Marshal(rec)
}

func decodeSession(data []byte) (*model.Session, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if rec.Session == nil {
		return nil, errors.New("failed to decode session: empty record")
	}
	if rec.Session.Document != nil {
		rec.Session.Document.Content = rec.Content
	}
	return rec.Session, nil
}

func (s *RedisSessionStore) Create(ctx context.Context, session *model.Session) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.sessionKey(session.ID), data, s.idleTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeSession(data)
}

// Update runs fn inside WATCH/MULTI and retries when another writer got there first
func (s *RedisSessionStore) Update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	key := s.sessionKey(id)
	var updated *model.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		out, err := encodeSession(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.idleTTL)
			return nil
		})
		if err == nil {
			updated = session
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("failed to update session %s: too much contention", id)
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	keys := []string{s.sessionKey(id), s.lockKey(id, model.OperationGenerate), s.lockKey(id, model.OperationAnalyze)}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisSessionStore) Acquire(ctx context.Context, id string, op model.Operation) (string, error) {
	exists, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return "", ErrSessionNotFound
	}
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(id, op), token, s.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire %s lock: %w", op, err)
	}
	if !ok {
		return "", ErrOperationInProgress
	}
	return token, nil
}

func (s *RedisSessionStore) Release(ctx context.Context, id string, op model.Operation, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.lockKey(id, op)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release %s lock: %w", op, err)
	}
	return nil
}

// LockTTL is how long an in-flight marker outlives a crashed holder
func (s *RedisSessionStore) LockTTL() time.Duration {
	return s.lockTTL
}

// Sweep removes sessions idle since before idleBefore. Keys also expire on their own.
func (s *RedisSessionStore) Sweep(ctx context.Context, idleBefore time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}
		session, err := decodeSession(data)
		if err != nil || !session.UpdatedAt.Before(idleBefore) {
			continue
		}
		busy, err := s.client.Exists(ctx, s.lockKey(session.ID, model.OperationGenerate), s.lockKey(session.ID, model.OperationAnalyze)).Result()
		if err != nil {
			return removed, err
		}
		if busy > 0 {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"session:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
