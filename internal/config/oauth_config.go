package config

import "time"

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetAuthCodeTimeout is how long an authorization code stays redeemable
func (OAuth) GetAuthCodeTimeout() time.Duration {
	return GetEnvDuration("AUTH_CODE_TTL", time.Hour)
}

// GetFlowStateTimeout is how long the login CSRF state issued by /oauth/authorize stays valid
func (OAuth) GetFlowStateTimeout() time.Duration {
	return GetEnvDuration("FLOW_STATE_TTL", 10*time.Minute)
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_TTL", time.Hour)
}

// GetAccessTokenSigningKey switches access tokens to HS256 JWTs when set
func (OAuth) GetAccessTokenSigningKey() string {
	return GetEnv("ACCESS_TOKEN_SIGNING_KEY", "")
}

func (OAuth) GetTokenType() string {
	return GetEnv("TOKEN_TYPE", "bearer")
}
