package users

import (
	"fmt"
	"sync"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
)

// Authenticator verifies username/password pairs against a UserRepo
type Authenticator struct {
	repo UserRepo

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthenticator(repo UserRepo) *Authenticator {
	return &Authenticator{repo: repo}
}

// VerifyCredentials returns the user when password matches. Unknown users still
// pay for a bcrypt comparison so response timing does not reveal which usernames exist.
func (a *Authenticator) VerifyCredentials(username, password string) (*User, error) {
	user, err := a.repo.GetByUsername(username)
	if err != nil {
		CheckPasswordHash(password, a.dummy())
		return nil, fmt.Errorf("[Authenticator.VerifyCredentials] unknown user: %w", apperrors.ErrInvalidCredentials)
	}
	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("[Authenticator.VerifyCredentials] password mismatch: %w", apperrors.ErrInvalidCredentials)
	}
	if user.Blocked {
		return nil, fmt.Errorf("[Authenticator.VerifyCredentials] %w", apperrors.ErrUserBlocked)
	}
	_ = a.repo.SetLastLogin(username)
	return user, nil
}

func (a *Authenticator) dummy() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = HashPassword("not-a-real-password")
	})
	return a.dummyHash
}
