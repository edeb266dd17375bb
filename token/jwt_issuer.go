package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTIssuer mints signed JWT access tokens
type JWTIssuer struct {
	signer    Signer
	issuer    string
	tokenType string
	expiry    time.Duration
	nowFunc   func() time.Time
}

var _ Issuer = (*JWTIssuer)(nil)

// JWTIssuerOption configures a JWTIssuer
type JWTIssuerOption func(*JWTIssuer)

// WithJWTNowTime overrides the clock used for iat/exp (testing)
func WithJWTNowTime(nowFunc func() time.Time) JWTIssuerOption {
	return func(i *JWTIssuer) {
		i.nowFunc = nowFunc
	}
}

// NewJWTIssuer signs with HMAC-SHA256 using signingKey
func NewJWTIssuer(signingKey, issuer, tokenType string, expiry time.Duration, opts ...JWTIssuerOption) (*JWTIssuer, error) {
	if signingKey == "" {
		return nil, errors.New("[NewJWTIssuer] signing key is required")
	}
	return NewSignedIssuer(NewHMACSigner(signingKey), issuer, tokenType, expiry, opts...), nil
}

func NewSignedIssuer(signer Signer, issuer, tokenType string, expiry time.Duration, opts ...JWTIssuerOption) *JWTIssuer {
	i := &JWTIssuer{
		signer:    signer,
		issuer:    issuer,
		tokenType: tokenType,
		expiry:    expiry,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *JWTIssuer) Issue(username, clientID string) (*AccessToken, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":       i.issuer,
		"sub":       username,
		"client_id": clientID,
		"iat":       now.Unix(),
		"exp":       now.Add(i.expiry).Unix(),
		"jti":       uuid.New().String(),
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("[JWTIssuer.Issue] %w", err)
	}
	return &AccessToken{
		Value:     signed,
		Type:      i.tokenType,
		ExpiresIn: i.expiry,
	}, nil
}
