package server

import (
	"errors"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/rs/zerolog/log"
)

// GrantPageData contains data for rendering the consent page
type GrantPageData struct {
	AppName     string
	Username    string
	ClientID    string
	RedirectURI string
	State       string // grant CSRF state bound to the session
}

// GrantPageHandler asks the logged-in user to approve the pending request (GET /oauth/grant)
func (s *Server) GrantPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.auth.GrantForm(r.Context(), sessionIDFromCookie(r))
		if err != nil {
			s.renderGrantError(w, r, err)
			return
		}

		renderPage(w, s.pages.grant, http.StatusOK, GrantPageData{
			AppName:     s.config.GetAppName(),
			Username:    session.Username,
			ClientID:    session.Pending.ClientID,
			RedirectURI: session.Pending.RedirectURI,
			State:       session.GrantState,
		})
	}
}

// GrantSubmissionHandler records the user's decision and redirects back to the client (POST /oauth/grant)
func (s *Server) GrantSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		var granted bool
		switch r.PostFormValue("grant") {
		case "true":
			granted = true
		case "false":
			granted = false
		default:
			s.renderError(w, http.StatusBadRequest, "grant must be true or false")
			return
		}

		redirect := func(redirectURI string, params url.Values) {
			if err := callbackRedirect(w, r, redirectURI, params); err != nil {
				log.Err(err).Msg("Failed to redirect to client")
				s.renderError(w, http.StatusInternalServerError, "Failed to redirect to the application")
			}
		}

		err := s.auth.Grant(r.Context(), sessionIDFromCookie(r), r.PostFormValue("state"), granted, redirect)
		if err != nil {
			s.renderGrantError(w, r, err)
		}
	}
}

func (s *Server) renderGrantError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSessionExpired):
		log.Info().Err(err).Msg("grant attempted with an expired session")
		s.clearSessionCookie(w, r)
		s.renderError(w, http.StatusUnauthorized, "Please sign in again from the application.")
	case errors.Is(err, apperrors.ErrUnauthenticated):
		log.Info().Err(err).Msg("grant attempted without a session")
		s.renderError(w, http.StatusUnauthorized, "Please sign in again from the application.")
	case errors.Is(err, apperrors.ErrCsrfMismatch):
		log.Warn().Err(err).Msg("grant state mismatch")
		s.renderError(w, http.StatusForbidden, "This request could not be verified.")
	case errors.Is(err, apperrors.ErrMalformedRequest):
		s.renderError(w, http.StatusBadRequest, "There is no pending authorization request.")
	default:
		log.Err(err).Msg("grant failed")
		s.renderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
