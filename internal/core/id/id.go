// Package id generates the identities of uuid-keyed fixtures.
// UUIDv7 is time-ordered, so rows inserted by one run sort in insertion order.
package id

import (
	"github.com/google/uuid"
)

type ID = uuid.UUID

// New returns a UUIDv7, or a random v4 if the clock source fails.
func New() ID {
	if v, err := uuid.NewV7(); err == nil {
		return v
	}
	return uuid.New()
}

// Parse accepts any RFC 4122 textual form.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}
