package oauthmodel

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
)

// Parameter errors; all of them are malformed requests
var (
	ErrInvalidResponseType = fmt.Errorf("unsupported response type: %w", apperrors.ErrMalformedRequest)
	ErrMissingClientID     = fmt.Errorf("missing client id: %w", apperrors.ErrMalformedRequest)
	ErrInvalidRedirectUri  = fmt.Errorf("invalid or no redirect uri: %w", apperrors.ErrMalformedRequest)
)
