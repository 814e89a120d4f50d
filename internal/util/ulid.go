package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewCorrelationID generates a ULID used to tie a user-facing error to its log entry.
func NewCorrelationID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// IsCorrelationID reports whether s is a well-formed correlation id.
func IsCorrelationID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
