// Package dedupe drops relay re-deliveries of a message the service has
// already answered. Keys are relay message sids.
package dedupe

import "context"

// Store remembers keys for a TTL window.
type Store interface {
	// Seen marks key and reports whether it was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Forget unmarks key so a re-delivery is processed again.
	Forget(ctx context.Context, key string) error
	Close() error
}
