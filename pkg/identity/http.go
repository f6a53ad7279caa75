package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPLCURL is the public PLC directory.
const DefaultPLCURL = "https://plc.directory"

// maxDIDLength bounds the well-known handle response.
const maxDIDLength = 2048

// HTTPDirectory resolves identities over HTTP: handles through the
// "/.well-known/atproto-did" route, did:plc through the PLC directory and
// did:web through the host's "did.json". Handles are not verified against
// the document's aliases.
type HTTPDirectory struct {
	client    *client.Client
	plcURL    string
	webScheme string
	handleURL func(handle string) string
	logger    zerolog.Logger
}

var _ Directory = (*HTTPDirectory)(nil)

// DirectoryOption configures an HTTPDirectory.
type DirectoryOption func(*HTTPDirectory)

// WithPLCURL sets the PLC directory base URL.
func WithPLCURL(plcURL string) DirectoryOption {
	return func(d *HTTPDirectory) {
		if plcURL != "" {
			d.plcURL = strings.TrimRight(plcURL, "/")
		}
	}
}

// WithHandleURL overrides how the well-known URL of a handle is built.
func WithHandleURL(fn func(handle string) string) DirectoryOption {
	return func(d *HTTPDirectory) {
		d.handleURL = fn
	}
}

// WithWebScheme sets the URL scheme used to fetch did:web documents.
func WithWebScheme(scheme string) DirectoryOption {
	return func(d *HTTPDirectory) {
		d.webScheme = scheme
	}
}

// WithDirectoryLogger sets the directory logger.
func WithDirectoryLogger(logger zerolog.Logger) DirectoryOption {
	return func(d *HTTPDirectory) {
		d.logger = logger
	}
}

// NewHTTPDirectory creates a directory issuing its requests through c, so
// lookups share the per-host limits of every other request.
func NewHTTPDirectory(c *client.Client, opts ...DirectoryOption) *HTTPDirectory {
	d := &HTTPDirectory{
		client:    c,
		plcURL:    DefaultPLCURL,
		webScheme: "https",
		handleURL: func(handle string) string {
			return "https://" + handle + "/.well-known/atproto-did"
		},
		logger: log.With().Str("component", "identity").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup implements Directory.
func (d *HTTPDirectory) Lookup(ctx context.Context, raw string) (*Identity, error) {
	key := Normalize(raw)
	if key == "" {
		return nil, &client.ResolutionError{Identifier: raw, Reason: "empty identifier"}
	}

	ident := &Identity{}
	did := key
	if !IsDID(key) {
		var err error
		did, err = d.ResolveHandle(ctx, key)
		if err != nil {
			return nil, err
		}
		ident.Handle = key
	}

	doc, err := d.ResolveDID(ctx, did)
	if err != nil {
		return nil, err
	}

	pds, ok := doc.PDSEndpoint()
	if !ok {
		return nil, &client.ResolutionError{Identifier: did, Reason: "no atproto PDS endpoint"}
	}

	ident.DID = did
	ident.PDS = pds
	if ident.Handle == "" {
		ident.Handle, _ = doc.DeclaredHandle()
	}

	d.logger.Debug().
		Str("identifier", raw).
		Str("did", did).
		Str("pds", pds).
		Msg("Resolved identity")

	return ident, nil
}

// ResolveHandle returns the DID published at the handle's well-known route.
func (d *HTTPDirectory) ResolveHandle(ctx context.Context, handle string) (string, error) {
	text, err := d.client.GetText(ctx, d.handleURL(handle), maxDIDLength)
	if err != nil {
		return "", resolutionFailure(handle, "handle resolution failed", err)
	}
	if !IsDID(text) {
		return "", &client.ResolutionError{
			Identifier: handle,
			Reason:     fmt.Sprintf("well-known route returned %q, not a DID", text),
		}
	}
	return text, nil
}

// ResolveDID fetches the DID document of did.
func (d *HTTPDirectory) ResolveDID(ctx context.Context, did string) (*Document, error) {
	docURL, err := d.documentURL(did)
	if err != nil {
		return nil, &client.ResolutionError{Identifier: did, Reason: "unsupported DID", Err: err}
	}

	var doc Document
	if err := d.client.GetJSON(ctx, docURL, nil, &doc); err != nil {
		var te *client.TransportError
		if errors.As(err, &te) && te.StatusCode == 404 {
			return nil, resolutionFailure(did, "DID not found", err)
		}
		return nil, resolutionFailure(did, "DID resolution failed", err)
	}

	if doc.ID != did {
		return nil, &client.ResolutionError{
			Identifier: did,
			Reason:     fmt.Sprintf("document is for %q", doc.ID),
		}
	}
	return &doc, nil
}

func (d *HTTPDirectory) documentURL(did string) (string, error) {
	switch {
	case strings.HasPrefix(did, "did:plc:"):
		return d.plcURL + "/" + did, nil
	case strings.HasPrefix(did, "did:web:"):
		parts := strings.Split(strings.TrimPrefix(did, "did:web:"), ":")
		host, err := url.PathUnescape(parts[0])
		if err != nil || host == "" {
			return "", fmt.Errorf("invalid did:web host %q", parts[0])
		}
		if len(parts) == 1 {
			return d.webScheme + "://" + host + "/.well-known/did.json", nil
		}
		return d.webScheme + "://" + host + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
	default:
		return "", fmt.Errorf("DID method not supported: %s", did)
	}
}

// resolutionFailure wraps err as a ResolutionError unless it reports a
// cancellation.
func resolutionFailure(identifier, reason string, err error) error {
	if errors.Is(err, client.ErrCancelled) {
		return err
	}
	return &client.ResolutionError{Identifier: identifier, Reason: reason, Err: err}
}
