// Package seed loads clients and users into the in-memory registries at startup.
package seed

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/go-authcode-server/clients"
	"github.com/jrsteele09/go-authcode-server/users"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAdminUsername = "admin"
	DefaultClientID      = "default-client"
)

// File is the layout of the seed YAML document
type File struct {
	Clients []Client `yaml:"clients"`
	Users   []User   `yaml:"users"`
}

// Client is a registered OAuth2 client
type Client struct {
	ID           string   `yaml:"id"`
	Secret       string   `yaml:"secret"`
	Description  string   `yaml:"description"`
	RedirectURIs []string `yaml:"redirect_uris"`
}

// User is an end user. Exactly one of Password (plaintext, hashed on load) or
// PasswordHash (bcrypt) must be set.
type User struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	FullName     string `yaml:"full_name"`
	Email        string `yaml:"email"`
	Blocked      bool   `yaml:"blocked"`
}

// Parse decodes a seed document. Unknown keys are rejected so typos do not go unnoticed.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("[seed.Parse] %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile reads and parses the seed file at path. A missing file is reported
// with an error satisfying errors.Is(err, os.ErrNotExist).
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[seed.LoadFile] %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Validate checks required fields and duplicates
func (f *File) Validate() error {
	seenClients := map[string]bool{}
	for i, c := range f.Clients {
		if c.ID == "" || c.Secret == "" {
			return fmt.Errorf("[seed.Validate] client %d: id and secret are required", i)
		}
		if seenClients[c.ID] {
			return fmt.Errorf("[seed.Validate] duplicate client %q", c.ID)
		}
		seenClients[c.ID] = true
	}

	seenUsers := map[string]bool{}
	for i, u := range f.Users {
		if u.Username == "" {
			return fmt.Errorf("[seed.Validate] user %d: username is required", i)
		}
		if (u.Password == "") == (u.PasswordHash == "") {
			return fmt.Errorf("[seed.Validate] user %q: exactly one of password or password_hash is required", u.Username)
		}
		if seenUsers[u.Username] {
			return fmt.Errorf("[seed.Validate] duplicate user %q", u.Username)
		}
		seenUsers[u.Username] = true
	}
	return nil
}

// Apply upserts every client and user into the repositories
func (f *File) Apply(clientRepo clients.Repo, userRepo users.UserRepo) error {
	for _, c := range f.Clients {
		client := &clients.Client{
			ID:           c.ID,
			Secret:       c.Secret,
			Description:  c.Description,
			RedirectURIs: c.RedirectURIs,
		}
		if err := clientRepo.Upsert(client); err != nil {
			return fmt.Errorf("[seed.Apply] client %q: %w", c.ID, err)
		}
	}

	for _, u := range f.Users {
		hash := u.PasswordHash
		if u.Password != "" {
			var err error
			if hash, err = users.HashPassword(u.Password); err != nil {
				return fmt.Errorf("[seed.Apply] hashing password for %q: %w", u.Username, err)
			}
		}
		user := &users.User{
			Username:     u.Username,
			PasswordHash: hash,
			FullName:     u.FullName,
			Email:        u.Email,
			Blocked:      u.Blocked,
		}
		if err := userRepo.Upsert(user); err != nil {
			return fmt.Errorf("[seed.Apply] user %q: %w", u.Username, err)
		}
	}

	log.Info().Int("clients", len(f.Clients)).Int("users", len(f.Users)).Msg("seed data loaded")
	return nil
}

// Credentials are generated by Bootstrap and shown once at startup
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// Bootstrap creates a default user and client when the registries are empty, so a
// fresh server without a seed file can still complete a flow. The returned
// credentials are empty for whatever already existed.
func Bootstrap(clientRepo clients.Repo, userRepo users.UserRepo) (*Credentials, error) {
	creds := &Credentials{}

	existingUsers, err := userRepo.List(0, 1)
	if err != nil {
		return nil, fmt.Errorf("[seed.Bootstrap] listing users: %w", err)
	}
	if len(existingUsers) == 0 {
		password, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("[seed.Bootstrap] failed to generate password: %w", err)
		}
		hash, err := users.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("[seed.Bootstrap] failed to hash password: %w", err)
		}
		admin := &users.User{
			Username:     DefaultAdminUsername,
			PasswordHash: hash,
			FullName:     "System Administrator",
		}
		if err := userRepo.Upsert(admin); err != nil {
			return nil, fmt.Errorf("[seed.Bootstrap] failed to create default user: %w", err)
		}
		creds.Username, creds.Password = DefaultAdminUsername, password
	}

	existingClients, err := clientRepo.List(0, 1)
	if err != nil {
		return nil, fmt.Errorf("[seed.Bootstrap] listing clients: %w", err)
	}
	if len(existingClients) == 0 {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("[seed.Bootstrap] failed to generate client secret: %w", err)
		}
		client := &clients.Client{
			ID:          DefaultClientID,
			Secret:      secret,
			Description: "Default client (any redirect URI)",
		}
		if err := clientRepo.Upsert(client); err != nil {
			return nil, fmt.Errorf("[seed.Bootstrap] failed to create default client: %w", err)
		}
		creds.ClientID, creds.ClientSecret = DefaultClientID, secret
	}
	return creds, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
