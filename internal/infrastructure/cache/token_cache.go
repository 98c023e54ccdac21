// Package cache holds short-lived values shared across requests, chiefly the
// CRM access token, so concurrent callers and restarted processes reuse it.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned after a cache has been closed
var ErrClosed = errors.New("cache: closed")

// TokenCache stores string values with a time-to-live
type TokenCache interface {
	// Get returns the value and whether it was present and unexpired
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
