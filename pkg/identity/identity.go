// Package identity resolves atproto identifiers (handles or DIDs) to the
// account's DID and PDS endpoint.
//
// A Directory performs the actual lookup; Resolver memoizes its results in
// a weak TTL cache and coalesces concurrent lookups of the same identifier.
package identity

import (
	"context"
	"strings"
)

// Identity is a resolved account.
type Identity struct {
	// DID is the permanent account identifier
	DID string

	// Handle is the handle the lookup started from, if any
	Handle string

	// PDS is the base URL of the account's personal data server
	PDS string
}

// Directory looks up identities by handle or DID.
//
// Implementations fail with *client.ResolutionError when the identifier
// cannot be resolved or its document has no PDS endpoint.
type Directory interface {
	Lookup(ctx context.Context, raw string) (*Identity, error)
}

// IsDID reports whether raw is a DID rather than a handle.
func IsDID(raw string) bool {
	return strings.HasPrefix(raw, "did:")
}

// Normalize trims surrounding whitespace and a leading "@" from raw, and
// lower-cases handles. DIDs are returned unchanged apart from trimming.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if IsDID(raw) {
		return raw
	}
	return strings.ToLower(strings.TrimPrefix(raw, "@"))
}
