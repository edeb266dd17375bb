package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/jrsteele09/go-authcode-server/oauthmodel"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Authorize begins the authorization flow (GET /oauth/authorize)
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parseAuthorizationParameters(r)

		// The login state travels in the URL; the client's own state never leaves the flow repo
		loginRedirect := func(loginState string) {
			http.Redirect(w, r, RouteLogin+"?"+url.Values{"state": {loginState}}.Encode(), http.StatusSeeOther)
		}

		if err := s.auth.Authorize(r.Context(), params, loginRedirect); err != nil {
			log.Warn().Err(err).Str("client_id", params.ClientID).Msg("authorization request rejected")
			code, description, status := authorizeErrorResponse(err)
			writeJSONError(w, code, description, status)
			return
		}
	}
}

// Token exchanges an authorization code for an access token (POST /oauth/token)
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauthmodel.ErrorInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := parseTokenRequest(r)
		tokenResponse, err := s.auth.Token(r.Context(), tokenReq)
		if err != nil {
			code, description, status := tokenErrorResponse(err)
			if status >= http.StatusInternalServerError {
				log.Err(err).Msg("token request failed")
			} else {
				log.Warn().Err(err).Str("error", code).Msg("token request rejected")
			}
			if code == oauthmodel.ErrorInvalidClient && tokenReq.AuthorizationHeader != "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
			}
			writeJSONError(w, code, description, status)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

func parseAuthorizationParameters(r *http.Request) *oauthmodel.AuthorizationParameters {
	q := r.URL.Query()
	return &oauthmodel.AuthorizationParameters{
		ResponseType: oauthmodel.ResponseType(q.Get("response_type")),
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		State:        q.Get("state"),
	}
}

// parseTokenRequest reads the token parameters from the request body only
func parseTokenRequest(r *http.Request) *oauthmodel.TokenRequest {
	form := r.PostForm
	_, hasClientID := form["client_id"]
	_, hasClientSecret := form["client_secret"]
	return &oauthmodel.TokenRequest{
		GrantType:           oauthmodel.GrantType(form.Get("grant_type")),
		Code:                form.Get("code"),
		RedirectURI:         form.Get("redirect_uri"),
		AuthorizationHeader: r.Header.Get("Authorization"),
		ClientID:            form.Get("client_id"),
		ClientSecret:        form.Get("client_secret"),
		HasClientID:         hasClientID,
		HasClientSecret:     hasClientSecret,
	}
}

// authorizeErrorResponse maps authorize failures. None of them redirect: the
// redirect URI has not been trusted yet.
func authorizeErrorResponse(err error) (code, description string, status int) {
	switch {
	case errors.Is(err, oauthmodel.ErrInvalidResponseType):
		return oauthmodel.ErrorUnsupportedResponseType, "response_type must be code", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidClient):
		return oauthmodel.ErrorInvalidClient, "unknown client", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidRedirectURI):
		return oauthmodel.ErrorInvalidRequest, "redirect_uri is not registered for this client", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrMalformedRequest):
		return oauthmodel.ErrorInvalidRequest, "client_id and an absolute redirect_uri are required", http.StatusBadRequest
	default:
		return oauthmodel.ErrorServerError, "internal error", http.StatusInternalServerError
	}
}

// tokenErrorResponse maps token failures. Code validation failures all look the
// same on the wire; the distinct kind is only logged.
func tokenErrorResponse(err error) (code, description string, status int) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidClientCredentials):
		return oauthmodel.ErrorInvalidClient, "client authentication failed", http.StatusUnauthorized
	case apperrors.IsCodeValidation(err):
		return oauthmodel.ErrorInvalidGrant, "authorization code is invalid or expired", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnsupportedGrantType):
		return oauthmodel.ErrorUnsupportedGrantType, "grant_type must be authorization_code", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrMalformedRequest):
		return oauthmodel.ErrorInvalidRequest, "code and redirect_uri are required", http.StatusBadRequest
	default:
		return oauthmodel.ErrorServerError, "internal error", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, oauthmodel.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
