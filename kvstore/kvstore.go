// Package kvstore is the shared "key in, value or miss out, with an expiry"
// contract behind the session store and the durable side of the booking
// correlation store. The backing service owns expiry: a ttl of zero means no
// expiry, anything else is enforced by the store itself.
package kvstore

import (
	"context"
	"time"
)

type KV interface {
	// Get returns (value, true, nil) on a hit and ("", false, nil) when the
	// key is absent or expired. Errors are storage failures only.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
