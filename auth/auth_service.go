package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authcode-server/auth/authflowrepo"
	"github.com/jrsteele09/go-authcode-server/authcode"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
	"github.com/jrsteele09/go-authcode-server/sessions"
	"github.com/jrsteele09/go-authcode-server/token"
	"github.com/jrsteele09/go-authcode-server/users"
	"github.com/rs/zerolog/log"
)

// AuthorizationRedirect sends the user agent back to the client. params holds either
// code and state, or error and state, and is appended to redirectURI's query.
type AuthorizationRedirect func(redirectURI string, params url.Values)

const (
	DefaultSessionAge           = 30 * time.Minute
	DefaultRememberMeSessionAge = 30 * 24 * time.Hour
)

// AuthorizationService drives the authorize → login → grant → token flow.
// It knows nothing about HTTP; the server package maps its errors to responses.
type AuthorizationService struct {
	repos         Repos
	codes         *authcode.Store
	issuer        token.Issuer
	credentials   *CredentialValidator
	authenticator *users.Authenticator

	generateState        token.Generator  // login and grant CSRF tokens
	sessionAge           time.Duration    // session lifetime without remember me
	rememberMeSessionAge time.Duration    // session lifetime with remember me
	nowTime              func() time.Time // injectable for testing
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithSessionAge sets the lifetime of sessions created by Login
func WithSessionAge(standard, rememberMe time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if standard > 0 {
			as.sessionAge = standard
		}
		if rememberMe > 0 {
			as.rememberMeSessionAge = rememberMe
		}
	}
}

// WithStateGenerator replaces the CSRF state generator
func WithStateGenerator(g token.Generator) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.generateState = g
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(
	repos Repos,
	codes *authcode.Store,
	issuer token.Issuer,
	options ...AuthorizationServiceOption,
) (*AuthorizationService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Flows == nil {
		return nil, errors.New("[NewAuthorizationService] Flows repo is required")
	}
	if codes == nil {
		return nil, errors.New("[NewAuthorizationService] code store is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewAuthorizationService] token issuer is required")
	}

	as := &AuthorizationService{
		repos:                repos,
		codes:                codes,
		issuer:               issuer,
		credentials:          NewCredentialValidator(repos.Clients),
		authenticator:        users.NewAuthenticator(repos.Users),
		generateState:        token.NewRandomString,
		sessionAge:           DefaultSessionAge,
		rememberMeSessionAge: DefaultRememberMeSessionAge,
		nowTime:              time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// Authorize validates an authorization request and parks it under a fresh login state.
// loginRedirect is called with that state only when nothing failed.
func (as *AuthorizationService) Authorize(_ context.Context, parameters *oauthmodel.AuthorizationParameters, loginRedirect func(loginState string)) error {
	if parameters == nil {
		return fmt.Errorf("[AuthorizationService.Authorize] no parameters: %w", apperrors.ErrMalformedRequest)
	}
	if err := parameters.Validate(); err != nil {
		return fmt.Errorf("[AuthorizationService.Authorize] %w", err)
	}

	client, err := as.repos.Clients.Get(parameters.ClientID)
	if err != nil || client == nil {
		return fmt.Errorf("[AuthorizationService.Authorize] client %q: %w", parameters.ClientID, apperrors.ErrInvalidClient)
	}
	if !client.RedirectAllowed(parameters.RedirectURI) {
		return fmt.Errorf("[AuthorizationService.Authorize] redirect uri not registered for client %q: %w", client.ID, apperrors.ErrInvalidRedirectURI)
	}

	loginState := as.generateState()
	flow := &authflowrepo.AuthFlowState{
		ClientID:    client.ID,
		RedirectURI: parameters.RedirectURI,
		ClientState: parameters.State,
		CreatedAt:   as.nowTime(),
	}
	if err := as.repos.Flows.Upsert(loginState, flow); err != nil {
		return apperrors.Wrapf(err, "[AuthorizationService.Authorize] storing flow state")
	}

	loginRedirect(loginState)
	return nil
}

// LoginForm checks that loginState belongs to a live authorize request
func (as *AuthorizationService) LoginForm(_ context.Context, loginState string) error {
	_, err := as.flow(loginState)
	return err
}

// Login verifies the user's credentials for the request parked under loginState.
// On failure the flow state is kept so the login form can be shown again.
func (as *AuthorizationService) Login(ctx context.Context, loginState, username, password string, rememberMe bool) (*sessions.Session, error) {
	flow, err := as.flow(loginState)
	if err != nil {
		return nil, err
	}

	user, err := as.authenticator.VerifyCredentials(username, password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[AuthorizationService.Login]")
	}

	// Concurrent submissions of one form race here; only the first takes the flow
	flow, err = as.repos.Flows.Take(loginState)
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationService.Login] login state already used: %w", apperrors.ErrCsrfMismatch)
	}

	now := as.nowTime()
	age := as.sessionAge
	if rememberMe {
		age = as.rememberMeSessionAge
	}
	session := &sessions.Session{
		ID:         uuid.NewString(),
		Username:   user.Username,
		GrantState: as.generateState(),
		Pending:    flow,
		RememberMe: rememberMe,
		CreatedAt:  now,
		ExpiresAt:  now.Add(age),
	}
	if err := as.repos.Sessions.Upsert(ctx, session); err != nil {
		return nil, apperrors.Wrapf(err, "[AuthorizationService.Login] storing session")
	}

	log.Info().Str("username", user.Username).Str("client_id", flow.ClientID).Msg("user logged in")
	return session, nil
}

// GrantForm returns the session whose pending request the grant page should show
func (as *AuthorizationService) GrantForm(ctx context.Context, sessionID string) (*sessions.Session, error) {
	session, err := as.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Pending == nil {
		return nil, fmt.Errorf("[AuthorizationService.GrantForm] no pending authorization: %w", apperrors.ErrMalformedRequest)
	}
	return session, nil
}

// Grant records the user's decision. A code is minted only when the grant state
// matches the session and the user approved.
func (as *AuthorizationService) Grant(ctx context.Context, sessionID, grantState string, granted bool, redirect AuthorizationRedirect) error {
	session, err := as.session(ctx, sessionID)
	if err != nil {
		return err
	}
	if grantState == "" || subtle.ConstantTimeCompare([]byte(grantState), []byte(session.GrantState)) != 1 {
		return fmt.Errorf("[AuthorizationService.Grant] %w", apperrors.ErrCsrfMismatch)
	}
	if session.Pending == nil {
		return fmt.Errorf("[AuthorizationService.Grant] no pending authorization: %w", apperrors.ErrMalformedRequest)
	}

	taken, err := as.repos.Sessions.TakePending(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return fmt.Errorf("[AuthorizationService.Grant] session ended: %w", apperrors.ErrUnauthenticated)
		}
		return apperrors.Wrapf(err, "[AuthorizationService.Grant] taking pending authorization")
	}
	pending := taken.Pending
	if pending == nil {
		return fmt.Errorf("[AuthorizationService.Grant] pending authorization already decided: %w", apperrors.ErrMalformedRequest)
	}

	params := url.Values{}
	if !granted {
		params.Set("error", oauthmodel.ErrorAccessDenied)
		if pending.ClientState != "" {
			params.Set("state", pending.ClientState)
		}
		log.Info().Str("username", session.Username).Str("client_id", pending.ClientID).Msg("authorization denied")
		redirect(pending.RedirectURI, params)
		return nil
	}

	code := as.codes.CreateCode(pending.ClientID, session.Username, pending.RedirectURI)
	params.Set("code", code)
	if pending.ClientState != "" {
		params.Set("state", pending.ClientState)
	}
	log.Info().Str("username", session.Username).Str("client_id", pending.ClientID).Str("code", codePrefix(code)).Msg("authorization code issued")
	redirect(pending.RedirectURI, params)
	return nil
}

// Token exchanges an authorization code for an access token
func (as *AuthorizationService) Token(ctx context.Context, req *oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("[AuthorizationService.Token] no request: %w", apperrors.ErrMalformedRequest)
	}
	if req.GrantType != oauthmodel.AuthorizationCodeGrant {
		return nil, fmt.Errorf("[AuthorizationService.Token] grant type %q: %w", req.GrantType, apperrors.ErrUnsupportedGrantType)
	}
	if req.Code == "" || req.RedirectURI == "" {
		return nil, fmt.Errorf("[AuthorizationService.Token] code and redirect_uri are required: %w", apperrors.ErrMalformedRequest)
	}

	client, method, err := as.credentials.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	username, err := as.codes.FetchAndConsume(client.ID, req.RedirectURI, req.Code)
	if err != nil {
		log.Warn().Err(err).Str("client_id", client.ID).Str("code", codePrefix(req.Code)).Msg("authorization code rejected")
		return nil, apperrors.Wrapf(err, "[AuthorizationService.Token]")
	}

	accessToken, err := as.issuer.Issue(username, client.ID)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[AuthorizationService.Token] issuing access token")
	}

	log.Info().Str("client_id", client.ID).Str("auth_method", method).Str("username", username).Msg("access token issued")
	return &oauthmodel.TokenResponse{
		AccessToken: accessToken.Value,
		TokenType:   accessToken.Type,
		ExpiresIn:   int(accessToken.ExpiresIn / time.Second),
	}, nil
}

// Logout ends the session. Codes already issued stay redeemable.
func (as *AuthorizationService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return apperrors.Wrapf(as.repos.Sessions.Delete(ctx, sessionID), "[AuthorizationService.Logout]")
}

func (as *AuthorizationService) flow(loginState string) (*authflowrepo.AuthFlowState, error) {
	if loginState == "" {
		return nil, fmt.Errorf("[AuthorizationService] missing login state: %w", apperrors.ErrCsrfMismatch)
	}
	flow, err := as.repos.Flows.Get(loginState)
	if err != nil {
		return nil, fmt.Errorf("[AuthorizationService] unknown login state: %w", apperrors.ErrCsrfMismatch)
	}
	return flow, nil
}

func (as *AuthorizationService) session(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("[AuthorizationService] no session: %w", apperrors.ErrUnauthenticated)
	}
	session, err := as.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, fmt.Errorf("[AuthorizationService] unknown session: %w", apperrors.ErrUnauthenticated)
		}
		return nil, apperrors.Wrapf(err, "[AuthorizationService] loading session")
	}
	if session.Expired(as.nowTime()) {
		_ = as.repos.Sessions.Delete(ctx, sessionID)
		return nil, fmt.Errorf("[AuthorizationService] %w", apperrors.ErrSessionExpired)
	}
	return session, nil
}

// codePrefix keeps codes out of logs while leaving enough to correlate entries
func codePrefix(code string) string {
	if len(code) <= 6 {
		return "***"
	}
	return code[:6] + "..."
}
