package memoryrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/sessions"
)

var _ sessions.Repo = (*Repo)(nil)

// Repo keeps sessions in a ttlcache; entries vanish at their ExpiresAt.
// Writes are serialised so TakePending can read and update an entry in one step.
type Repo struct {
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, sessions.Session]
	nowTime func() time.Time
}

// Option modifies a Repo
type Option func(*Repo)

// WithNowTime sets the clock used to derive entry TTLs (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(r *Repo) {
		r.nowTime = nowFunc
	}
}

// New creates the repo and starts the cache's expiry loop. Call Close to stop it.
func New(options ...Option) *Repo {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, sessions.Session](),
	)
	r := &Repo{
		cache:   cache,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	go cache.Start()
	return r
}

func (r *Repo) Upsert(_ context.Context, session *sessions.Session) error {
	if session == nil || session.ID == "" {
		return errors.New("[memoryrepo.Upsert] session ID is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ttl := session.ExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		r.cache.Delete(session.ID)
		return nil
	}
	r.cache.Set(session.ID, copySession(*session), ttl)
	return nil
}

func (r *Repo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	item := r.cache.Get(sessionID)
	if item == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	s := copySession(item.Value())
	return &s, nil
}

func (r *Repo) TakePending(_ context.Context, sessionID string) (*sessions.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.cache.Get(sessionID)
	if item == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	s := copySession(item.Value())
	if s.Pending == nil {
		return &s, nil
	}

	cleared := copySession(s)
	cleared.Pending = nil
	if ttl := time.Until(item.ExpiresAt()); ttl > 0 {
		r.cache.Set(sessionID, cleared, ttl)
	} else {
		r.cache.Delete(sessionID)
	}
	return &s, nil
}

func (r *Repo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(sessionID)
	return nil
}

// Len returns the number of cached sessions
func (r *Repo) Len() int {
	return r.cache.Len()
}

// Close stops the expiry loop
func (r *Repo) Close() error {
	r.cache.Stop()
	return nil
}

func copySession(s sessions.Session) sessions.Session {
	if s.Pending != nil {
		pending := *s.Pending
		s.Pending = &pending
	}
	return s
}
