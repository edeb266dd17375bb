package auth_test

import (
	"context"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-authcode-server/auth"
	"github.com/jrsteele09/go-authcode-server/auth/authflowrepo"
	"github.com/jrsteele09/go-authcode-server/authcode"
	"github.com/jrsteele09/go-authcode-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-authcode-server/clients/fakerepo"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
	"github.com/jrsteele09/go-authcode-server/sessions"
	"github.com/jrsteele09/go-authcode-server/sessions/memoryrepo"
	"github.com/jrsteele09/go-authcode-server/token"
	"github.com/jrsteele09/go-authcode-server/users"
	fakeuserrepo "github.com/jrsteele09/go-authcode-server/users/repofake"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testClientID     = "test"
	testClientSecret = "secret"
	testRedirectURI  = "https://example.com/cb"
	testClientState  = "xyz"
	testUsername     = "batman"
	testPassword     = "i-am-the-night"
)

func TestMain(m *testing.M) {
	users.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testFixture holds all test dependencies
type testFixture struct {
	clock      *testClock
	userRepo   *fakeuserrepo.FakeUserRepo
	clientRepo *fakeclientrepo.FakeClientRepo
	flows      *authflowrepo.InMemoryRepo
	sessions   *memoryrepo.Repo
	codes      *authcode.Store
	service    *auth.AuthorizationService
}

// setupTestFixture creates a new test fixture with a registered client and user
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	clock := &testClock{now: time.Now()}
	ur := fakeuserrepo.NewFakeUserRepo()
	cr := fakeclientrepo.NewFakeClientRepo()
	sr := memoryrepo.New()
	t.Cleanup(func() { _ = sr.Close() })
	fr := authflowrepo.NewInMemoryRepo(10*time.Minute, clock.Now)
	codes := authcode.New(authcode.WithNowTime(clock.Now))

	service, err := auth.NewAuthorizationService(
		auth.Repos{Users: ur, Clients: cr, Sessions: sr, Flows: fr},
		codes,
		token.NewOpaqueIssuer("bearer", time.Hour),
		auth.WithNowTime(clock.Now),
	)
	require.NoError(t, err)

	require.NoError(t, cr.Upsert(&clients.Client{
		ID:           testClientID,
		Secret:       testClientSecret,
		RedirectURIs: []string{testRedirectURI},
	}))
	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, ur.Upsert(&users.User{Username: testUsername, PasswordHash: hash}))

	return &testFixture{
		clock:      clock,
		userRepo:   ur,
		clientRepo: cr,
		flows:      fr,
		sessions:   sr,
		codes:      codes,
		service:    service,
	}
}

func validAuthorizationParameters() *oauthmodel.AuthorizationParameters {
	return &oauthmodel.AuthorizationParameters{
		ResponseType: oauthmodel.CodeResponseType,
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		State:        testClientState,
	}
}

// authorize runs the authorize step and returns the login state
func (f *testFixture) authorize(t *testing.T) string {
	t.Helper()
	var loginState string
	err := f.service.Authorize(context.Background(), validAuthorizationParameters(), func(s string) { loginState = s })
	require.NoError(t, err)
	require.Len(t, loginState, token.DefaultLength)
	return loginState
}

// login runs authorize and login and returns the session
func (f *testFixture) login(t *testing.T) (sessionID, grantState string) {
	t.Helper()
	session, err := f.service.Login(context.Background(), f.authorize(t), testUsername, testPassword, false)
	require.NoError(t, err)
	return session.ID, session.GrantState
}

type capturedRedirect struct {
	uri    string
	params url.Values
	called bool
}

func (c *capturedRedirect) redirect(uri string, params url.Values) {
	c.uri, c.params, c.called = uri, params, true
}

func (f *testFixture) basicTokenRequest(code string) *oauthmodel.TokenRequest {
	return &oauthmodel.TokenRequest{
		GrantType:           oauthmodel.AuthorizationCodeGrant,
		Code:                code,
		RedirectURI:         testRedirectURI,
		AuthorizationHeader: basicHeader(testClientID, testClientSecret),
	}
}

func TestNewAuthorizationService_RequiresDependencies(t *testing.T) {
	_, err := auth.NewAuthorizationService(auth.Repos{}, authcode.New(), token.NewOpaqueIssuer("bearer", time.Hour))
	require.Error(t, err)
}

func TestAuthorizationFlow_EndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	loginState := f.authorize(t)
	require.NoError(t, f.service.LoginForm(ctx, loginState))

	session, err := f.service.Login(ctx, loginState, testUsername, testPassword, false)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Len(t, session.GrantState, token.DefaultLength)
	require.NotEqual(t, loginState, session.GrantState)
	require.NotEqual(t, testClientState, session.GrantState)
	require.Equal(t, f.clock.Now().Add(auth.DefaultSessionAge), session.ExpiresAt)

	// login state is single use
	require.ErrorIs(t, f.service.LoginForm(ctx, loginState), apperrors.ErrCsrfMismatch)

	pending, err := f.service.GrantForm(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, testClientID, pending.Pending.ClientID)
	require.Equal(t, testRedirectURI, pending.Pending.RedirectURI)
	require.Equal(t, testClientState, pending.Pending.ClientState)

	var captured capturedRedirect
	require.NoError(t, f.service.Grant(ctx, session.ID, session.GrantState, true, captured.redirect))
	require.True(t, captured.called)
	require.Equal(t, testRedirectURI, captured.uri)
	require.Equal(t, testClientState, captured.params.Get("state"))
	code := captured.params.Get("code")
	require.Len(t, code, token.DefaultLength)

	resp, err := f.service.Token(ctx, f.basicTokenRequest(code))
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, 3600, resp.ExpiresIn)

	// the code cannot be exchanged twice
	_, err = f.service.Token(ctx, f.basicTokenRequest(code))
	require.ErrorIs(t, err, apperrors.ErrCodeNotFound)
}

func TestAuthorize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *oauthmodel.AuthorizationParameters)
		wantErr error
	}{
		{"bad response type", func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = "token" }, apperrors.ErrMalformedRequest},
		{"missing client id", func(p *oauthmodel.AuthorizationParameters) { p.ClientID = "" }, apperrors.ErrMalformedRequest},
		{"missing redirect uri", func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "" }, apperrors.ErrMalformedRequest},
		{"unknown client", func(p *oauthmodel.AuthorizationParameters) { p.ClientID = "ghost" }, apperrors.ErrInvalidClient},
		{"unregistered redirect", func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "https://evil.example/cb" }, apperrors.ErrInvalidRedirectURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			params := validAuthorizationParameters()
			tt.mutate(params)

			called := false
			err := f.service.Authorize(context.Background(), params, func(string) { called = true })
			require.ErrorIs(t, err, tt.wantErr)
			require.False(t, called)
			require.Zero(t, f.flows.Len())
		})
	}
}

func TestAuthorize_AnyRedirectWhenNoneRegistered(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.clientRepo.Upsert(&clients.Client{ID: "open", Secret: "s"}))

	params := validAuthorizationParameters()
	params.ClientID = "open"
	params.RedirectURI = "http://localhost:9999/anything"
	require.NoError(t, f.service.Authorize(context.Background(), params, func(string) {}))
	require.Equal(t, 1, f.flows.Len())
}

func TestLogin_BadCredentialsKeepsFlow(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	loginState := f.authorize(t)

	_, err := f.service.Login(ctx, loginState, testUsername, "wrong", false)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.service.Login(ctx, loginState, "robin", testPassword, false)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// still usable after failures
	require.NoError(t, f.service.LoginForm(ctx, loginState))
	_, err = f.service.Login(ctx, loginState, testUsername, testPassword, false)
	require.NoError(t, err)
}

func TestLogin_BlockedUser(t *testing.T) {
	f := setupTestFixture(t)
	user, err := f.userRepo.GetByUsername(testUsername)
	require.NoError(t, err)
	user.Blocked = true
	require.NoError(t, f.userRepo.Upsert(user))

	_, err = f.service.Login(context.Background(), f.authorize(t), testUsername, testPassword, false)
	require.ErrorIs(t, err, apperrors.ErrUserBlocked)
}

func TestLogin_UnknownOrExpiredState(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, "", testUsername, testPassword, false)
	require.ErrorIs(t, err, apperrors.ErrCsrfMismatch)

	_, err = f.service.Login(ctx, "made-up", testUsername, testPassword, false)
	require.ErrorIs(t, err, apperrors.ErrCsrfMismatch)

	loginState := f.authorize(t)
	f.clock.Advance(11 * time.Minute)
	_, err = f.service.Login(ctx, loginState, testUsername, testPassword, false)
	require.ErrorIs(t, err, apperrors.ErrCsrfMismatch)
}

func TestLogin_RememberMe(t *testing.T) {
	f := setupTestFixture(t)
	session, err := f.service.Login(context.Background(), f.authorize(t), testUsername, testPassword, true)
	require.NoError(t, err)
	require.True(t, session.RememberMe)
	require.Equal(t, f.clock.Now().Add(auth.DefaultRememberMeSessionAge), session.ExpiresAt)
}

func TestGrant_SessionErrors(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.service.GrantForm(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	var captured capturedRedirect
	err = f.service.Grant(ctx, "unknown-session", "x", true, captured.redirect)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	require.False(t, captured.called)

	sessionID, grantState := f.login(t)
	f.clock.Advance(auth.DefaultSessionAge)
	err = f.service.Grant(ctx, sessionID, grantState, true, captured.redirect)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.False(t, captured.called)
	require.Zero(t, f.codes.Len())
}

func TestGrant_CsrfMismatchMintsNothing(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	sessionID, grantState := f.login(t)

	var captured capturedRedirect
	for _, state := range []string{"", "wrong", testClientState} {
		err := f.service.Grant(ctx, sessionID, state, true, captured.redirect)
		require.ErrorIs(t, err, apperrors.ErrCsrfMismatch)
	}
	require.False(t, captured.called)
	require.Zero(t, f.codes.Len())

	// the pending request survives a rejected attempt
	require.NoError(t, f.service.Grant(ctx, sessionID, grantState, true, captured.redirect))
	require.True(t, captured.called)
	require.Equal(t, 1, f.codes.Len())
}

func TestGrant_Denied(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	sessionID, grantState := f.login(t)

	var captured capturedRedirect
	require.NoError(t, f.service.Grant(ctx, sessionID, grantState, false, captured.redirect))
	require.Equal(t, testRedirectURI, captured.uri)
	require.Equal(t, oauthmodel.ErrorAccessDenied, captured.params.Get("error"))
	require.Equal(t, testClientState, captured.params.Get("state"))
	require.Empty(t, captured.params.Get("code"))
	require.Zero(t, f.codes.Len())

	// decision already taken
	_, err := f.service.GrantForm(ctx, sessionID)
	require.ErrorIs(t, err, apperrors.ErrMalformedRequest)
	err = f.service.Grant(ctx, sessionID, grantState, true, captured.redirect)
	require.ErrorIs(t, err, apperrors.ErrMalformedRequest)
}

func TestGrant_StateWithReservedCharacters(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	params := validAuthorizationParameters()
	params.State = "a b&c=d/é"
	var loginState string
	require.NoError(t, f.service.Authorize(ctx, params, func(s string) { loginState = s }))
	session, err := f.service.Login(ctx, loginState, testUsername, testPassword, false)
	require.NoError(t, err)

	var captured capturedRedirect
	require.NoError(t, f.service.Grant(ctx, session.ID, session.GrantState, true, captured.redirect))
	require.Equal(t, "a b&c=d/é", captured.params.Get("state"))
}

func TestToken_Errors(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *oauthmodel.TokenRequest
		wantErr error
	}{
		{"nil request", nil, apperrors.ErrMalformedRequest},
		{
			name:    "wrong grant type",
			req:     &oauthmodel.TokenRequest{GrantType: "password", Code: "c", RedirectURI: testRedirectURI},
			wantErr: apperrors.ErrUnsupportedGrantType,
		},
		{
			name:    "missing code",
			req:     &oauthmodel.TokenRequest{GrantType: oauthmodel.AuthorizationCodeGrant, RedirectURI: testRedirectURI},
			wantErr: apperrors.ErrMalformedRequest,
		},
		{
			name:    "missing redirect",
			req:     &oauthmodel.TokenRequest{GrantType: oauthmodel.AuthorizationCodeGrant, Code: "c"},
			wantErr: apperrors.ErrMalformedRequest,
		},
		{
			name:    "no credentials",
			req:     &oauthmodel.TokenRequest{GrantType: oauthmodel.AuthorizationCodeGrant, Code: "c", RedirectURI: testRedirectURI},
			wantErr: apperrors.ErrInvalidClientCredentials,
		},
		{"unknown code", f.basicTokenRequest("does-not-exist"), apperrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.service.Token(ctx, tt.req)
			require.Nil(t, resp)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToken_BadCredentialsLeaveCodeUntouched(t *testing.T) {
	f := setupTestFixture(t)
	code := f.issueCode(t)

	req := f.basicTokenRequest(code)
	req.AuthorizationHeader = basicHeader(testClientID, "wrong")
	_, err := f.service.Token(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrInvalidClientCredentials)
	require.Equal(t, 1, f.codes.Len())

	_, err = f.service.Token(context.Background(), f.basicTokenRequest(code))
	require.NoError(t, err)
}

func TestToken_WrongRedirectBurnsCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	code := f.issueCode(t)

	req := f.basicTokenRequest(code)
	req.RedirectURI = "https://example.com/other"
	_, err := f.service.Token(ctx, req)
	require.ErrorIs(t, err, apperrors.ErrRedirectMismatch)
	require.True(t, apperrors.IsCodeValidation(err))

	_, err = f.service.Token(ctx, f.basicTokenRequest(code))
	require.ErrorIs(t, err, apperrors.ErrCodeNotFound)
}

func TestToken_OtherClientCannotRedeem(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.clientRepo.Upsert(&clients.Client{ID: "other", Secret: "other-secret"}))
	code := f.issueCode(t)

	req := &oauthmodel.TokenRequest{
		GrantType:       oauthmodel.AuthorizationCodeGrant,
		Code:            code,
		RedirectURI:     testRedirectURI,
		ClientID:        "other",
		ClientSecret:    "other-secret",
		HasClientID:     true,
		HasClientSecret: true,
	}
	_, err := f.service.Token(context.Background(), req)
	require.ErrorIs(t, err, apperrors.ErrClientMismatch)
	require.Zero(t, f.codes.Len())
}

func TestToken_ExpiredCode(t *testing.T) {
	f := setupTestFixture(t)
	code := f.issueCode(t)

	f.clock.Advance(authcode.DefaultValidity + time.Second)
	_, err := f.service.Token(context.Background(), f.basicTokenRequest(code))
	require.ErrorIs(t, err, apperrors.ErrCodeNotFound)
	require.Empty(t, f.codes.Live())
}

func TestToken_FormCredentials(t *testing.T) {
	f := setupTestFixture(t)
	code := f.issueCode(t)

	req := &oauthmodel.TokenRequest{
		GrantType:       oauthmodel.AuthorizationCodeGrant,
		Code:            code,
		RedirectURI:     testRedirectURI,
		ClientID:        testClientID,
		ClientSecret:    testClientSecret,
		HasClientID:     true,
		HasClientSecret: true,
	}
	resp, err := f.service.Token(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestLogout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	sessionID, grantState := f.login(t)

	require.NoError(t, f.service.Logout(ctx, sessionID))
	require.NoError(t, f.service.Logout(ctx, ""))

	var captured capturedRedirect
	err := f.service.Grant(ctx, sessionID, grantState, true, captured.redirect)
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

// issueCode runs the whole browser side of the flow and returns the minted code
func (f *testFixture) issueCode(t *testing.T) string {
	t.Helper()
	sessionID, grantState := f.login(t)
	var captured capturedRedirect
	require.NoError(t, f.service.Grant(context.Background(), sessionID, grantState, true, captured.redirect))
	return captured.params.Get("code")
}

// slowFlows and slowSessions stretch the gap between reading a value and
// consuming it, so concurrent callers overlap even on a single CPU
type slowFlows struct {
	authflowrepo.Repo
}

func (s slowFlows) Get(loginState string) (*authflowrepo.AuthFlowState, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Repo.Get(loginState)
}

type slowSessions struct {
	sessions.Repo
}

func (s slowSessions) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Repo.Get(ctx, sessionID)
}

// slowService shares the fixture's stores behind slow reads
func (f *testFixture) slowService(t *testing.T) *auth.AuthorizationService {
	t.Helper()
	service, err := auth.NewAuthorizationService(
		auth.Repos{Users: f.userRepo, Clients: f.clientRepo, Sessions: slowSessions{f.sessions}, Flows: slowFlows{f.flows}},
		f.codes,
		token.NewOpaqueIssuer("bearer", time.Hour),
		auth.WithNowTime(f.clock.Now),
	)
	require.NoError(t, err)
	return service
}

func TestLogin_ConcurrentSubmissionsCreateOneSession(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	service := f.slowService(t)
	loginState := f.authorize(t)

	const attempts = 5
	var accepted atomic.Int32
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Login(ctx, loginState, testUsername, testPassword, false); err != nil {
				errs <- err
				return
			}
			accepted.Add(1)
		}()
	}
	wg.Wait()
	close(errs)

	require.Equal(t, int32(1), accepted.Load())
	for err := range errs {
		require.ErrorIs(t, err, apperrors.ErrCsrfMismatch)
	}
	require.Zero(t, f.flows.Len())
	require.Equal(t, 1, f.sessions.Len())
}

func TestGrant_ConcurrentApprovalsMintOneCode(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	service := f.slowService(t)
	sessionID, grantState := f.login(t)

	const attempts = 5
	var mu sync.Mutex
	var codes []string
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := service.Grant(ctx, sessionID, grantState, true, func(_ string, params url.Values) {
				mu.Lock()
				defer mu.Unlock()
				codes = append(codes, params.Get("code"))
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	require.Len(t, codes, 1)
	for err := range errs {
		require.ErrorIs(t, err, apperrors.ErrMalformedRequest)
	}
	require.Equal(t, []string{codes[0]}, f.codes.Live())

	_, err := f.service.GrantForm(ctx, sessionID)
	require.ErrorIs(t, err, apperrors.ErrMalformedRequest)
}
