package token

import (
	"crypto/rand"
	"math/big"
)

const (
	// DefaultLength is the length of authorization codes, CSRF states and opaque access tokens
	DefaultLength = 32

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var alphabetSize = big.NewInt(int64(len(alphanumeric)))

// Generator produces random token strings
type Generator func() string

// RandomAlphanumeric returns a string of length characters drawn uniformly from [A-Za-z0-9]
// using crypto/rand. It panics if the system random source fails.
func RandomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			panic("token: crypto/rand failure: " + err.Error())
		}
		b[i] = alphanumeric[n.Int64()]
	}
	return string(b)
}

// NewRandomString is the default Generator
func NewRandomString() string {
	return RandomAlphanumeric(DefaultLength)
}
