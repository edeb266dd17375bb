package authflowrepo

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Entries older than the configured TTL are treated as absent and pruned on writes.
type InMemoryRepo struct {
	mu      sync.RWMutex
	states  map[string]*AuthFlowState
	ttl     time.Duration
	nowTime func() time.Time
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(ttl time.Duration, nowTime func() time.Time) *InMemoryRepo {
	if nowTime == nil {
		nowTime = time.Now
	}
	return &InMemoryRepo{
		states:  make(map[string]*AuthFlowState),
		ttl:     ttl,
		nowTime: nowTime,
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(loginState string, authState *AuthFlowState) error {
	if loginState == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneExpired()

	// Create a copy to prevent external modifications
	stored := *authState
	r.states[loginState] = &stored
	return nil
}

// Get retrieves an auth flow state by its login state
func (r *InMemoryRepo) Get(loginState string) (*AuthFlowState, error) {
	if loginState == "" {
		return nil, apperrors.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	authState, exists := r.states[loginState]
	if !exists || r.expired(authState) {
		return nil, apperrors.ErrNotFound
	}

	// Return a copy to prevent external modifications
	found := *authState
	return &found, nil
}

// Take atomically retrieves and removes an auth flow state
func (r *InMemoryRepo) Take(loginState string) (*AuthFlowState, error) {
	if loginState == "" {
		return nil, apperrors.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, exists := r.states[loginState]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	delete(r.states, loginState)
	if r.expired(authState) {
		return nil, apperrors.ErrNotFound
	}
	return authState, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(loginState string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, loginState)
	return nil
}

// Len returns the number of stored states, expired ones included
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

func (r *InMemoryRepo) expired(s *AuthFlowState) bool {
	return r.ttl > 0 && !r.nowTime().Before(s.CreatedAt.Add(r.ttl))
}

// pruneExpired must be called with r.mu held
func (r *InMemoryRepo) pruneExpired() {
	for k, s := range r.states {
		if r.expired(s) {
			delete(r.states, k)
		}
	}
}
