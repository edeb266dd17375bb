package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/sessions"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Repo = (*Repo)(nil)

// takeRetries bounds optimistic-lock retries in TakePending
const takeRetries = 5

// Repo stores sessions as JSON values with a Redis TTL matching ExpiresAt
type Repo struct {
	client  redis.UniversalClient
	prefix  string
	nowTime func() time.Time
}

// Option modifies a Repo
type Option func(*Repo)

// WithNowTime sets the clock used to derive key TTLs (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Repo) {
		r.nowTime = nowFunc
	}
}

// New creates a Repo; keys are written as "<prefix>:session:<id>"
func New(client redis.UniversalClient, prefix string, options ...Option) *Repo {
	r := &Repo{
		client:  client,
		prefix:  prefix,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Repo) key(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, sessionID)
}

func (r *Repo) Upsert(ctx context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("[redisrepo.Upsert] session ID is required")
	}
	ttl := session.ExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		return r.Delete(ctx, session.ID)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[redisrepo.Upsert] failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("[redisrepo.Upsert] failed to store session: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	s, err := r.read(ctx, r.client, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[redisrepo.Get] %w", err)
	}
	return s, nil
}

// TakePending clears Pending under WATCH/MULTI so a concurrent writer aborts the
// transaction and the read is retried.
func (r *Repo) TakePending(ctx context.Context, sessionID string) (*sessions.Session, error) {
	key := r.key(sessionID)
	var taken *sessions.Session

	txf := func(tx *redis.Tx) error {
		s, err := r.read(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		taken = s
		if s.Pending == nil {
			return nil
		}

		cleared := *s
		cleared.Pending = nil
		payload, err := json.Marshal(&cleared)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < takeRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return taken, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("[redisrepo.TakePending] %w", err)
	}
	return nil, fmt.Errorf("[redisrepo.TakePending] session %s kept changing: %w", sessionID, redis.TxFailedErr)
}

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *Repo) read(ctx context.Context, c getter, sessionID string) (*sessions.Session, error) {
	payload, err := c.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var s sessions.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("[redisrepo.Delete] failed to delete session: %w", err)
	}
	return nil
}

// Ping checks connectivity, used at startup
func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
