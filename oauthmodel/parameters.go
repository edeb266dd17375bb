package oauthmodel

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are received as query parameters at the /oauth/authorize endpoint.
type AuthorizationParameters struct {
	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes, must be "code"
	ResponseType ResponseType

	// ClientID identifies the application requesting authorization.
	// Required: Yes
	// Validated against: clients.Client.ID in the client registry
	ClientID string

	// RedirectURI is where the authorization response will be sent.
	// Required: Yes
	// Must exactly match the URI presented again at the token endpoint
	RedirectURI string

	// State is an opaque value used by the client to maintain state between request and callback.
	// Required: No (recommended)
	// Echoed back verbatim on the final redirect. It is never used as this server's own CSRF token.
	State string
}

// Validate checks the parameters that can be checked without the client record
func (p *AuthorizationParameters) Validate() error {
	if p.ResponseType != CodeResponseType {
		return fmt.Errorf("%w: %q", ErrInvalidResponseType, p.ResponseType)
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrMissingClientID
	}
	if strings.TrimSpace(p.RedirectURI) == "" {
		return ErrInvalidRedirectUri
	}
	// RFC 6749 §3.1.2: absolute, no fragment
	u, err := url.Parse(p.RedirectURI)
	if err != nil || !u.IsAbs() || u.Fragment != "" {
		return fmt.Errorf("%w: %q", ErrInvalidRedirectUri, p.RedirectURI)
	}
	return nil
}

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body (and Authorization header) sent to the /oauth/token endpoint.
type TokenRequest struct {
	// GrantType must be "authorization_code"
	GrantType GrantType

	// Code is the authorization code received from the grant redirect.
	// Usage: Exchanged once for a token, then becomes invalid
	Code string

	// RedirectURI must be byte-for-byte identical to the one given at /oauth/authorize
	RedirectURI string

	// AuthorizationHeader is the raw Authorization header, used for client_secret_basic
	AuthorizationHeader string

	// ClientID and ClientSecret are the form fields used for client_secret_post.
	// Security: Never log ClientSecret
	ClientID     string
	ClientSecret string

	// HasClientID / HasClientSecret record field presence, since an empty field still counts
	// as a second authentication method when a header is sent too
	HasClientID     bool
	HasClientSecret bool
}

// TokenResponse represents the response from an OAuth2 token request (RFC 6749 §5.1).
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token, e.g. "bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in,omitempty"`
}

// ErrorResponse is the JSON body of an OAuth2 error
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
