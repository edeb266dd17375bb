package token

import "time"

// Issuer mints access tokens for a user authenticated through the authorization-code grant
type Issuer interface {
	Issue(username, clientID string) (*AccessToken, error)
}

// AccessToken is a minted access token
type AccessToken struct {
	Value     string
	Type      string
	ExpiresIn time.Duration
}

// OpaqueIssuer mints random alphanumeric access tokens. Nothing is recorded
// server side; resource servers are outside the scope of this service.
type OpaqueIssuer struct {
	tokenType string
	expiry    time.Duration
	generate  Generator
}

var _ Issuer = (*OpaqueIssuer)(nil)

func NewOpaqueIssuer(tokenType string, expiry time.Duration) *OpaqueIssuer {
	return &OpaqueIssuer{
		tokenType: tokenType,
		expiry:    expiry,
		generate:  NewRandomString,
	}
}

func (i *OpaqueIssuer) Issue(_, _ string) (*AccessToken, error) {
	return &AccessToken{
		Value:     i.generate(),
		Type:      i.tokenType,
		ExpiresIn: i.expiry,
	}, nil
}
