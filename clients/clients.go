package clients

import "crypto/subtle"

// Client is a registered application allowed to request authorization codes
type Client struct {
	ID           string   `json:"id" yaml:"id"`
	Description  string   `json:"description" yaml:"description"`
	Secret       string   `json:"-" yaml:"secret"`
	RedirectURIs []string `json:"redirectURIs" yaml:"redirect_uris"`
}

// SecretMatches compares candidate against the client secret in constant time
func (c *Client) SecretMatches(candidate string) bool {
	if c.Secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(candidate)) == 1
}

// RedirectAllowed reports whether uri is acceptable for this client. A client
// without registered URIs accepts any; otherwise the match must be exact.
func (c *Client) RedirectAllowed(uri string) bool {
	if len(c.RedirectURIs) == 0 {
		return true
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
