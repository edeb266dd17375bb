package sessions

import (
	"time"

	"github.com/jrsteele09/go-authcode-server/auth/authflowrepo"
)

// Session is an authenticated end-user session, established by a successful
// login and carried by the session cookie.
type Session struct {
	ID       string `json:"id"`       // Unique session identifier (UUID)
	Username string `json:"username"` // Authenticated user

	// GrantState is the CSRF token the grant form must echo back. It is
	// unrelated to the login state and to the client's own state parameter.
	GrantState string `json:"grant_state"`

	// Pending is the authorization request awaiting the user's decision.
	// Cleared once the user approves or denies.
	Pending *authflowrepo.AuthFlowState `json:"pending,omitempty"`

	RememberMe bool      `json:"remember_me"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
