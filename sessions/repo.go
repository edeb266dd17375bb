package sessions

import "context"

// Repo defines the interface for session storage operations.
// Implementations return errors.ErrSessionNotFound for unknown or expired sessions.
type Repo interface {
	// Upsert creates or updates a session
	Upsert(ctx context.Context, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// TakePending clears the session's pending authorization and returns the
	// session as it was before. Concurrent callers see the pending request at
	// most once between them; the rest get a session with Pending == nil.
	TakePending(ctx context.Context, sessionID string) (*Session, error)

	// Delete removes a session by ID
	Delete(ctx context.Context, sessionID string) error
}
