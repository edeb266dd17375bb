package server

import (
	"errors"
	"net/http"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string
	State    string // login CSRF state (hidden field in form)
	Username string // preserved on error
	Error    string
}

// LoginPageHandler displays the login page (GET /oauth/login?state=...)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loginState := r.URL.Query().Get("state")
		if err := s.auth.LoginForm(r.Context(), loginState); err != nil {
			log.Warn().Err(err).Msg("login page requested without a live authorization request")
			s.renderError(w, http.StatusBadRequest, "This sign-in link is invalid or has expired. Return to the application and try again.")
			return
		}

		renderPage(w, s.pages.login, http.StatusOK, LoginPageData{
			AppName: s.config.GetAppName(),
			State:   loginState,
		})
	}
}

// LoginSubmissionHandler processes the login form submission (POST /oauth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		loginState := r.PostFormValue("state")
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		rememberMe := isChecked(r.PostFormValue("remember_me"))

		session, err := s.auth.Login(r.Context(), loginState, username, password, rememberMe)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrUserBlocked):
			s.metrics.LoginAttempt(false)
			log.Info().Err(err).Str("username", username).Msg("login failed")
			renderPage(w, s.pages.login, http.StatusOK, LoginPageData{
				AppName:  s.config.GetAppName(),
				State:    loginState,
				Username: username,
				Error:    "Invalid username or password",
			})
			return
		case errors.Is(err, apperrors.ErrCsrfMismatch):
			log.Warn().Err(err).Msg("login submitted with an unknown state")
			s.renderError(w, http.StatusBadRequest, "This sign-in form has expired. Return to the application and try again.")
			return
		default:
			log.Err(err).Msg("login failed")
			s.renderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
			return
		}

		s.metrics.LoginAttempt(true)
		s.setSessionCookie(w, r, session)
		http.Redirect(w, r, RouteGrant, http.StatusSeeOther)
	}
}

// LogoutHandler ends the session (POST /oauth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), sessionIDFromCookie(r)); err != nil {
			log.Err(err).Msg("Failed to delete session")
		}
		s.clearSessionCookie(w, r)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func isChecked(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
