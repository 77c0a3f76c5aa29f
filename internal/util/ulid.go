package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID generates a new ULID string for session identifiers.
// Entropy comes from crypto/rand so concurrent callers never collide.
func NewULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// IsULID reports whether s parses as a ULID
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
