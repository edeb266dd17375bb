package oauthmodel_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationParameters_Validate(t *testing.T) {
	valid := oauthmodel.AuthorizationParameters{
		ResponseType: oauthmodel.CodeResponseType,
		ClientID:     "test",
		RedirectURI:  "https://example.com/cb",
		State:        "xyz",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(p *oauthmodel.AuthorizationParameters)
		wantErr error
	}{
		{"token response type", func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = "token" }, oauthmodel.ErrInvalidResponseType},
		{"empty response type", func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = "" }, oauthmodel.ErrInvalidResponseType},
		{"missing client", func(p *oauthmodel.AuthorizationParameters) { p.ClientID = " " }, oauthmodel.ErrMissingClientID},
		{"missing redirect", func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "" }, oauthmodel.ErrInvalidRedirectUri},
		{"relative redirect", func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "/cb" }, oauthmodel.ErrInvalidRedirectUri},
		{"redirect with fragment", func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "https://example.com/cb#x" }, oauthmodel.ErrInvalidRedirectUri},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, apperrors.ErrMalformedRequest)
		})
	}

	// The client's state is optional
	noState := valid
	noState.State = ""
	require.NoError(t, noState.Validate())
}
