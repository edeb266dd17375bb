package auth

import (
	"github.com/jrsteele09/go-authcode-server/auth/authflowrepo"
	"github.com/jrsteele09/go-authcode-server/clients"
	"github.com/jrsteele09/go-authcode-server/sessions"
	"github.com/jrsteele09/go-authcode-server/users"
)

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Users    users.UserRepo    // Registered end users
	Clients  clients.Repo      // Registered OAuth2 clients
	Sessions sessions.Repo     // Logged in user sessions
	Flows    authflowrepo.Repo // Authorize requests waiting for the login step
}
