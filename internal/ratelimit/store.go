package ratelimit

import (
	"context"
	"time"
)

// Record is the state kept for one identity within its current window.
type Record struct {
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	ResetAt     time.Time `json:"reset_at"`
}

// Store performs an atomic increment-and-check for a key.
//
// Take opens a fresh window with Count=1 when the key has no record or its
// record has expired. Within the window it increments Count and reports
// allowed while Count was below max; once Count reached max it reports not
// allowed and leaves Count untouched.
type Store interface {
	Take(ctx context.Context, key string, max int, window time.Duration) (rec Record, allowed bool, err error)
}

// Clock returns the current time. Stores take one so tests can move time.
type Clock func() time.Time
