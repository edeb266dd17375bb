// Package authcode holds the live authorization codes handed out at the end of
// the grant step and redeemed at the token endpoint.
package authcode

import (
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/token"
)

// DefaultValidity is how long a code can be redeemed after issuance
const DefaultValidity = 3600 * time.Second

// Code is an issued authorization code. It is never mutated once stored.
type Code struct {
	Value       string
	Username    string
	ClientID    string
	RedirectURI string
	ExpiresAt   time.Time
}

// Observer is notified of store events. Implementations must be safe for concurrent use
// and must not call back into the Store.
type Observer interface {
	CodeIssued()
	CodeRedeemed(err error)
	CodesPruned(n int)
}

// Store is a thread-safe custodian of live authorization codes.
// Every operation prunes expired codes inline; there is no background task.
type Store struct {
	mu       sync.Mutex
	codes    map[string]*Code
	validity time.Duration
	generate token.Generator
	nowTime  func() time.Time
	observer Observer
}

// Option modifies a Store
type Option func(*Store)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithValidity sets how long codes stay redeemable
func WithValidity(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithGenerator replaces the random code generator
func WithGenerator(g token.Generator) Option {
	return func(s *Store) {
		s.generate = g
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

func New(options ...Option) *Store {
	s := &Store{
		codes:    make(map[string]*Code),
		validity: DefaultValidity,
		generate: token.NewRandomString,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// CreateCode mints a code bound to (clientID, username, redirectURI).
// The caller must already have verified that the user granted access.
func (s *Store) CreateCode(clientID, username, redirectURI string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTime()
	s.removeExpired(now)

	value := s.generate()
	for {
		if _, exists := s.codes[value]; !exists {
			break
		}
		value = s.generate()
	}

	s.codes[value] = &Code{
		Value:       value,
		Username:    username,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		ExpiresAt:   now.Add(s.validity),
	}
	if s.observer != nil {
		s.observer.CodeIssued()
	}
	return value
}

// FetchAndConsume redeems code for the authenticated clientID and returns the bound username.
// A present code is removed whatever the outcome of the checks that follow, so a
// failed attempt burns it.
func (s *Store) FetchAndConsume(clientID, redirectURI, code string) (string, error) {
	username, err := s.fetchAndConsume(clientID, redirectURI, code)
	if s.observer != nil {
		s.observer.CodeRedeemed(err)
	}
	return username, err
}

func (s *Store) fetchAndConsume(clientID, redirectURI, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTime()
	s.removeExpired(now)

	c, ok := s.codes[code]
	if !ok {
		return "", apperrors.ErrCodeNotFound
	}
	delete(s.codes, code)

	if !now.Before(c.ExpiresAt) {
		return "", apperrors.ErrCodeNotFound
	}
	if c.RedirectURI != redirectURI {
		return "", apperrors.ErrRedirectMismatch
	}
	if c.ClientID != clientID {
		return "", apperrors.ErrClientMismatch
	}
	return c.Username, nil
}

// Live returns the values of all live codes after pruning expired ones
func (s *Store) Live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeExpired(s.nowTime())
	values := make([]string, 0, len(s.codes))
	for v := range s.codes {
		values = append(values, v)
	}
	return values
}

// Len returns the number of stored codes without pruning
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// removeExpired must be called with s.mu held
func (s *Store) removeExpired(now time.Time) {
	pruned := 0
	for value, c := range s.codes {
		if !now.Before(c.ExpiresAt) {
			delete(s.codes, value)
			pruned++
		}
	}
	if pruned > 0 && s.observer != nil {
		s.observer.CodesPruned(pruned)
	}
}
