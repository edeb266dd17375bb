package authflowrepo

import "time"

// AuthFlowState is what /oauth/authorize remembers for the login step. It is keyed
// by the login CSRF state embedded in the login form.
type AuthFlowState struct {
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	ClientState string    `json:"client_state"` // the requesting client's own state parameter, echoed on the final redirect
	CreatedAt   time.Time `json:"created_at"`
}

type Repo interface {
	Upsert(loginState string, authState *AuthFlowState) error
	Get(loginState string) (*AuthFlowState, error)
	// Take removes and returns the state in one step; only one caller can win it
	Take(loginState string) (*AuthFlowState, error)
	Delete(loginState string) error
}
