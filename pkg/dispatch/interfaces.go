package dispatch

import (
	"context"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Dispatcher sends one Request to a batch of registration IDs on a single
// gateway.
//
// A returned error means the whole request should be retried later. Problems
// that a retry cannot fix (a malformed request, a rejected key) are logged by
// the dispatcher and reported through Receipt.Skipped with a nil error.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string, req *Request) (Receipt, error)
}

// TokenStore remembers which registration IDs belong to which user.
type TokenStore interface {
	// Register adds a registration ID for the user. Registering the same ID
	// twice is a no-op.
	Register(ctx context.Context, user urn.URN, token string) error

	// Unregister removes a registration ID. Removing an unknown ID is not an error.
	Unregister(ctx context.Context, user urn.URN, token string) error

	// Fetch returns every registration ID known for the user, or an empty
	// slice.
	Fetch(ctx context.Context, user urn.URN) ([]string, error)
}

// TokenReplacer is implemented by stores that can swap a stale registration
// ID for its canonical replacement atomically.
type TokenReplacer interface {
	Replace(ctx context.Context, user urn.URN, oldToken, newToken string) error
}

// ReplaceToken swaps oldToken for newToken, atomically when the store
// supports it. Otherwise the new ID is registered before the old one is
// removed.
func ReplaceToken(ctx context.Context, store TokenStore, user urn.URN, oldToken, newToken string) error {
	if r, ok := store.(TokenReplacer); ok {
		return r.Replace(ctx, user, oldToken, newToken)
	}
	if err := store.Register(ctx, user, newToken); err != nil {
		return err
	}
	return store.Unregister(ctx, user, oldToken)
}
