package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jrsteele09/go-authcode-server/auth"
	"github.com/jrsteele09/go-authcode-server/auth/authflowrepo"
	"github.com/jrsteele09/go-authcode-server/authcode"
	fakeclientrepo "github.com/jrsteele09/go-authcode-server/clients/fakerepo"
	"github.com/jrsteele09/go-authcode-server/internal/config"
	"github.com/jrsteele09/go-authcode-server/internal/metrics"
	"github.com/jrsteele09/go-authcode-server/internal/seed"
	"github.com/jrsteele09/go-authcode-server/server"
	"github.com/jrsteele09/go-authcode-server/sessions"
	"github.com/jrsteele09/go-authcode-server/sessions/memoryrepo"
	"github.com/jrsteele09/go-authcode-server/sessions/redisrepo"
	"github.com/jrsteele09/go-authcode-server/token"
	fakeuserrepo "github.com/jrsteele09/go-authcode-server/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "authcode"

// application holds everything main wires together and must close on exit
type application struct {
	handler http.Handler
	closers []func() error
}

func newApplication(ctx context.Context, c config.Config) (*application, error) {
	app := &application{}

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	if err := loadSeed(c.GetSeedFile(), clientRepo, userRepo); err != nil {
		return nil, err
	}
	creds, err := seed.Bootstrap(clientRepo, userRepo)
	if err != nil {
		return nil, err
	}
	logBootstrapCredentials(creds)

	sessionRepo, err := app.newSessionRepo(ctx, c)
	if err != nil {
		app.Close()
		return nil, err
	}

	issuer, err := newTokenIssuer(c)
	if err != nil {
		app.Close()
		return nil, err
	}

	m := metrics.New()
	codes := authcode.New(
		authcode.WithValidity(c.GetAuthCodeTimeout()),
		authcode.WithObserver(m),
	)

	authService, err := auth.NewAuthorizationService(
		auth.Repos{
			Users:    userRepo,
			Clients:  clientRepo,
			Sessions: sessionRepo,
			Flows:    authflowrepo.NewInMemoryRepo(c.GetFlowStateTimeout(), nil),
		},
		codes,
		issuer,
		auth.WithSessionAge(c.GetMaxSessionAge(), c.GetRememberMeSessionAge()),
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("[newApplication] failed to create authorization service: %w", err)
	}

	srv, err := server.New(c, authService, m)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("[newApplication] failed to create server: %w", err)
	}
	app.handler = srv
	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}
	a.closers = nil
}

func (a *application) newSessionRepo(ctx context.Context, c config.Config) (sessions.Repo, error) {
	switch c.GetSessionStore() {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		a.closers = append(a.closers, client.Close)
		repo := redisrepo.New(client, redisKeyPrefix)
		if err := repo.Ping(ctx); err != nil {
			return nil, fmt.Errorf("[newSessionRepo] redis at %s: %w", c.GetRedisAddr(), err)
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("using redis session store")
		return repo, nil
	case config.SessionStoreMemory:
		repo := memoryrepo.New()
		a.closers = append(a.closers, repo.Close)
		log.Info().Msg("using in-memory session store")
		return repo, nil
	default:
		return nil, fmt.Errorf("[newSessionRepo] unknown session store %q", c.GetSessionStore())
	}
}

func newTokenIssuer(c config.Config) (token.Issuer, error) {
	key := c.GetAccessTokenSigningKey()
	if key == "" {
		return token.NewOpaqueIssuer(c.GetTokenType(), c.GetAccessTokenExpiry()), nil
	}
	issuer, err := token.NewJWTIssuer(key, c.GetAppName(), c.GetTokenType(), c.GetAccessTokenExpiry())
	if err != nil {
		return nil, fmt.Errorf("[newTokenIssuer] %w", err)
	}
	log.Info().Msg("issuing HS256 JWT access tokens")
	return issuer, nil
}

func loadSeed(path string, clientRepo *fakeclientrepo.FakeClientRepo, userRepo *fakeuserrepo.FakeUserRepo) error {
	f, err := seed.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("file", path).Msg("seed file not found, starting with empty registries")
		return nil
	}
	if err != nil {
		return err
	}
	return f.Apply(clientRepo, userRepo)
}

func logBootstrapCredentials(creds *seed.Credentials) {
	if creds.Password != "" {
		log.Warn().
			Str("username", creds.Username).
			Str("password", creds.Password).
			Msg("created default user; save this password, it will not be displayed again")
	}
	if creds.ClientSecret != "" {
		log.Warn().
			Str("client_id", creds.ClientID).
			Str("client_secret", creds.ClientSecret).
			Msg("created default client accepting any redirect URI")
	}
}
