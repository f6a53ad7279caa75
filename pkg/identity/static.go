package identity

import (
	"context"
	"sync"

	"github.com/Sternrassler/skyscan/pkg/client"
)

// StaticDirectory is a map-backed Directory for tests and fixed
// configurations.
type StaticDirectory struct {
	mu         sync.RWMutex
	handles    map[string]string
	identities map[string]Identity
}

var _ Directory = (*StaticDirectory)(nil)

// NewStaticDirectory creates a directory holding idents.
func NewStaticDirectory(idents ...Identity) *StaticDirectory {
	d := &StaticDirectory{
		handles:    make(map[string]string),
		identities: make(map[string]Identity),
	}
	for _, ident := range idents {
		d.Insert(ident)
	}
	return d
}

// Insert adds or replaces ident.
func (d *StaticDirectory) Insert(ident Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ident.Handle != "" {
		d.handles[Normalize(ident.Handle)] = ident.DID
	}
	d.identities[ident.DID] = ident
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(ctx context.Context, raw string) (*Identity, error) {
	if err := client.CheckCancelled(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	key := Normalize(raw)
	did := key
	if !IsDID(key) {
		var ok bool
		did, ok = d.handles[key]
		if !ok {
			return nil, &client.ResolutionError{Identifier: raw, Reason: "handle not found"}
		}
	}

	ident, ok := d.identities[did]
	if !ok {
		return nil, &client.ResolutionError{Identifier: raw, Reason: "DID not found"}
	}
	if ident.PDS == "" {
		return nil, &client.ResolutionError{Identifier: raw, Reason: "no atproto PDS endpoint"}
	}
	return &ident, nil
}
