package domain

import (
	"context"
	"errors"
)

// ErrStorageUnavailable wraps store backend failures so callers can tell
// "the store is down" apart from "the store has no record". Continuity
// lookups absorb it and fall through to the legacy marker tier.
var ErrStorageUnavailable = errors.New("token store unavailable")

// TokenStore persists the link between posted bot messages and continuation
// tokens. Implementations must be safe for concurrent use and must be
// treated by callers as possibly unavailable at any moment.
type TokenStore interface {
	// GetContinuationToken returns the token recorded for a bot message
	// timestamp, or "" with a nil error when no record exists.
	GetContinuationToken(ctx context.Context, tenantID, messageTS string) (string, error)

	// StoreMessage records a posted bot message and its active token.
	StoreMessage(ctx context.Context, rec BotResponseRecord) error
}
