// Package id wraps UUID generation for persisted entities. UUIDv7 keys
// are time-ordered, so inserts stay local in the B-tree and movement and
// activity rows sort by creation without a separate index.
package id

import (
	"github.com/google/uuid"
)

// ID keys every persisted row.
type ID = uuid.UUID

// New returns a UUIDv7. The random source failing is the only error path
// of NewV7; a V4 is still a valid key then.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse panics on malformed input. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

func Nil() ID {
	return uuid.Nil
}

func IsNil(id ID) bool {
	return id == uuid.Nil
}
