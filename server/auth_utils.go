package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-authcode-server/sessions"
)

// sessionCookieName carries the logged-in session between /oauth/login and /oauth/grant
const sessionCookieName = "session_id"

// setSessionCookie issues the session cookie. Remember-me sessions get a persistent
// cookie; others last for the browser session.
func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	maxAge := 0
	if session.RememberMe {
		maxAge = int(time.Until(session.ExpiresAt) / time.Second)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/oauth",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/oauth",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionIDFromCookie returns "" when no cookie was sent
func sessionIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// callbackRedirect sends the user agent to the client's redirect URI with params
// appended. The registered URI, including any query it carries, is kept byte for byte.
func callbackRedirect(w http.ResponseWriter, r *http.Request, callbackURI string, params url.Values) error {
	location, err := callbackLocation(callbackURI, params)
	if err != nil {
		return err
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
	return nil
}

func callbackLocation(callbackURI string, params url.Values) (string, error) {
	u, err := url.Parse(callbackURI)
	if err != nil {
		return "", fmt.Errorf("[callbackRedirect] invalid redirect URI: %w", err)
	}
	if u.Fragment != "" {
		return "", fmt.Errorf("[callbackRedirect] redirect URI has a fragment: %s", callbackURI)
	}
	encoded := params.Encode()
	switch {
	case encoded == "":
		return callbackURI, nil
	case u.RawQuery == "" && !u.ForceQuery:
		return callbackURI + "?" + encoded, nil
	case strings.HasSuffix(callbackURI, "?") || strings.HasSuffix(callbackURI, "&"):
		return callbackURI + encoded, nil
	default:
		return callbackURI + "&" + encoded, nil
	}
}
