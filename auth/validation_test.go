package auth_test

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-authcode-server/auth"
	"github.com/jrsteele09/go-authcode-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-authcode-server/clients/fakerepo"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
	"github.com/stretchr/testify/require"
)

func basicHeader(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func newValidator(t *testing.T) *auth.CredentialValidator {
	t.Helper()
	repo := fakeclientrepo.NewFakeClientRepo()
	require.NoError(t, repo.Upsert(&clients.Client{ID: "test", Secret: "secret"}))
	require.NoError(t, repo.Upsert(&clients.Client{ID: "svc:web", Secret: "p@ss word&="}))
	return auth.NewCredentialValidator(repo)
}

func TestCredentialValidator_Authenticate(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name       string
		req        *oauthmodel.TokenRequest
		wantClient string
		wantMethod string
	}{
		{
			name:       "basic",
			req:        &oauthmodel.TokenRequest{AuthorizationHeader: basicHeader("test", "secret")},
			wantClient: "test",
			wantMethod: oauthmodel.ClientSecretBasic,
		},
		{
			name:       "basic scheme is case insensitive",
			req:        &oauthmodel.TokenRequest{AuthorizationHeader: "bAsIc " + base64.StdEncoding.EncodeToString([]byte("test:secret"))},
			wantClient: "test",
			wantMethod: oauthmodel.ClientSecretBasic,
		},
		{
			name: "basic with form-url-encoded id and secret",
			req: &oauthmodel.TokenRequest{
				AuthorizationHeader: basicHeader(url.QueryEscape("svc:web"), url.QueryEscape("p@ss word&=")),
			},
			wantClient: "svc:web",
			wantMethod: oauthmodel.ClientSecretBasic,
		},
		{
			name: "form",
			req: &oauthmodel.TokenRequest{
				ClientID: "test", ClientSecret: "secret", HasClientID: true, HasClientSecret: true,
			},
			wantClient: "test",
			wantMethod: oauthmodel.ClientSecretPost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, method, err := v.Authenticate(context.Background(), tt.req)
			require.NoError(t, err)
			require.Equal(t, tt.wantClient, client.ID)
			require.Equal(t, tt.wantMethod, method)
		})
	}
}

func TestCredentialValidator_Rejects(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		req  *oauthmodel.TokenRequest
	}{
		{"neither method", &oauthmodel.TokenRequest{}},
		{
			name: "both methods",
			req: &oauthmodel.TokenRequest{
				AuthorizationHeader: basicHeader("test", "secret"),
				ClientID:            "test", ClientSecret: "secret", HasClientID: true, HasClientSecret: true,
			},
		},
		{
			name: "header plus empty form field",
			req: &oauthmodel.TokenRequest{
				AuthorizationHeader: basicHeader("test", "secret"),
				HasClientID:         true,
			},
		},
		{"wrong secret basic", &oauthmodel.TokenRequest{AuthorizationHeader: basicHeader("test", "nope")}},
		{"unknown client basic", &oauthmodel.TokenRequest{AuthorizationHeader: basicHeader("ghost", "secret")}},
		{"not basic scheme", &oauthmodel.TokenRequest{AuthorizationHeader: "Bearer abc"}},
		{"bad base64", &oauthmodel.TokenRequest{AuthorizationHeader: "Basic %%%"}},
		{"no colon", &oauthmodel.TokenRequest{AuthorizationHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte("testsecret"))}},
		{"form missing secret", &oauthmodel.TokenRequest{ClientID: "test", HasClientID: true}},
		{"form empty secret", &oauthmodel.TokenRequest{ClientID: "test", HasClientID: true, HasClientSecret: true}},
		{
			name: "form wrong secret",
			req:  &oauthmodel.TokenRequest{ClientID: "test", ClientSecret: "nope", HasClientID: true, HasClientSecret: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, err := v.Authenticate(context.Background(), tt.req)
			require.Nil(t, client)
			require.ErrorIs(t, err, apperrors.ErrInvalidClientCredentials)
		})
	}
}

func TestParseBasicAuth(t *testing.T) {
	id, secret, ok := auth.ParseBasicAuth(basicHeader("a%2Bb", "c%3Ad"))
	require.True(t, ok)
	require.Equal(t, "a+b", id)
	require.Equal(t, "c:d", secret)

	id, secret, ok = auth.ParseBasicAuth(basicHeader("test", "se:cret"))
	require.True(t, ok)
	require.Equal(t, "test", id)
	require.Equal(t, "se:cret", secret)

	_, _, ok = auth.ParseBasicAuth("Basic")
	require.False(t, ok)
}
