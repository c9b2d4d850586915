// Package scope implements the request-scoped store naming convention.
//
// A request-scoped store holds state for a single request. Its name is
// "request:" followed by a UUID, and the factory treats such names as
// existing before they are first looked up.
package scope

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every request-scoped store name.
const Prefix = "request:"

// NewRequestStoreName returns a fresh request-scoped store name.
func NewRequestStoreName() string {
	return RequestStoreName(uuid.New())
}

// RequestStoreName returns the store name for request id.
func RequestStoreName(id uuid.UUID) string {
	return Prefix + id.String()
}

// IsRequestScoped reports whether name follows the request-scoped
// convention. Usable as the factory's store.WithRequestScoped predicate.
func IsRequestScoped(name string) bool {
	_, ok := RequestID(name)
	return ok
}

// RequestID extracts the request id from a request-scoped store name.
func RequestID(name string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(name, Prefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
