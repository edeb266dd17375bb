package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-authcode-server/clients"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
)

// CredentialValidator authenticates the party calling the token endpoint, either
// through HTTP Basic (client_secret_basic) or form fields (client_secret_post).
// Exactly one method must be used.
type CredentialValidator struct {
	clients clients.Repo

	// compared against when the client is unknown so that the miss costs the same
	dummy *clients.Client
}

func NewCredentialValidator(clientRepo clients.Repo) *CredentialValidator {
	return &CredentialValidator{
		clients: clientRepo,
		dummy:   &clients.Client{Secret: "dummy-secret-for-unknown-clients"},
	}
}

// Authenticate returns the authenticated client and the method used.
// Every failure is ErrInvalidClientCredentials; the wrapping context is for logs only.
func (v *CredentialValidator) Authenticate(_ context.Context, req *oauthmodel.TokenRequest) (*clients.Client, string, error) {
	headerUsed := strings.TrimSpace(req.AuthorizationHeader) != ""
	formUsed := req.HasClientID || req.HasClientSecret

	var clientID, secret, method string
	switch {
	case headerUsed && formUsed:
		return nil, "", fmt.Errorf("[CredentialValidator.Authenticate] both header and form credentials: %w", apperrors.ErrInvalidClientCredentials)
	case headerUsed:
		id, s, ok := ParseBasicAuth(req.AuthorizationHeader)
		if !ok {
			return nil, oauthmodel.ClientSecretBasic, fmt.Errorf("[CredentialValidator.Authenticate] malformed basic credentials: %w", apperrors.ErrInvalidClientCredentials)
		}
		clientID, secret, method = id, s, oauthmodel.ClientSecretBasic
	case formUsed:
		clientID, secret, method = req.ClientID, req.ClientSecret, oauthmodel.ClientSecretPost
	default:
		return nil, "", fmt.Errorf("[CredentialValidator.Authenticate] no client credentials: %w", apperrors.ErrInvalidClientCredentials)
	}

	if clientID == "" || secret == "" {
		return nil, method, fmt.Errorf("[CredentialValidator.Authenticate] empty client id or secret: %w", apperrors.ErrInvalidClientCredentials)
	}

	client, err := v.clients.Get(clientID)
	if err != nil || client == nil {
		v.dummy.SecretMatches(secret)
		return nil, method, fmt.Errorf("[CredentialValidator.Authenticate] unknown client: %w", apperrors.ErrInvalidClientCredentials)
	}
	if !client.SecretMatches(secret) {
		return nil, method, fmt.Errorf("[CredentialValidator.Authenticate] secret mismatch: %w", apperrors.ErrInvalidClientCredentials)
	}
	return client, method, nil
}

// ParseBasicAuth decodes "Basic base64(id:secret)". Per RFC 6749 §2.3.1 the id and
// secret are form-url-encoded before base64 encoding, so both are unescaped.
func ParseBasicAuth(header string) (clientID, secret string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	rawID, rawSecret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	if clientID, err = url.QueryUnescape(rawID); err != nil {
		return "", "", false
	}
	if secret, err = url.QueryUnescape(rawSecret); err != nil {
		return "", "", false
	}
	return clientID, secret, true
}
