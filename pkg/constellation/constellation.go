// Package constellation queries the Constellation backlink index for the
// accounts linking to a target.
package constellation

import (
	"context"
	"net/url"
	"strings"

	"github.com/Sternrassler/skyscan/pkg/atproto"
	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/Sternrassler/skyscan/pkg/identity"
	"github.com/Sternrassler/skyscan/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultURL is the public Constellation instance.
const DefaultURL = "https://constellation.microcosm.blue"

const distinctDIDsPath = "/links/distinct-dids"

// BlockSubjectPath is the record path of a block's subject.
const BlockSubjectPath = ".subject"

// DistinctDIDsParams selects the links to list. Cursor is omitted from the
// request when empty.
type DistinctDIDsParams struct {
	Target     string
	Collection string
	Path       string
	Cursor     string
}

func (p DistinctDIDsParams) query() url.Values {
	return url.Values{
		"target":     {p.Target},
		"collection": {p.Collection},
		"path":       {p.Path},
		"cursor":     {p.Cursor},
	}
}

// DistinctDIDsResponse is one page of linking accounts. Cursor is nil on the
// last page.
type DistinctDIDsResponse struct {
	Total       int      `json:"total"`
	LinkingDIDs []string `json:"linking_dids"`
	Cursor      *string  `json:"cursor"`
}

// Client queries a Constellation instance.
type Client struct {
	http     *client.Client
	resolver *identity.Resolver
	baseURL  string
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the Constellation instance to query.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client sending requests through httpClient. The
// resolver turns handles into DIDs for BlockedBy; it may be nil when only
// DIDs are queried.
func NewClient(httpClient *client.Client, resolver *identity.Resolver, opts ...Option) *Client {
	c := &Client{
		http:     httpClient,
		resolver: resolver,
		baseURL:  DefaultURL,
		logger:   log.With().Str("component", "constellation").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the queried instance.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DistinctDIDs fetches one page of accounts linking to params.Target.
//
// Errors are *client.TransportError (carrying the request URL and status),
// *client.DecodeError or *client.CancellationError.
func (c *Client) DistinctDIDs(ctx context.Context, params DistinctDIDsParams) (*DistinctDIDsResponse, error) {
	var out DistinctDIDsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+distinctDIDsPath, params.query(), &out); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("target", params.Target).
		Int("total", out.Total).
		Int("count", len(out.LinkingDIDs)).
		Msg("Fetched distinct DIDs")

	return &out, nil
}

// LinkingDIDs streams every account linking to params.Target, starting at
// params.Cursor.
func (c *Client) LinkingDIDs(params DistinctDIDsParams) *pagination.Stream[string] {
	return c.linkingDIDs(&params, nil, "links")
}

// BlockedBy streams the accounts blocking actor, a handle or DID. Handles
// are resolved on the first pull.
func (c *Client) BlockedBy(actor string) *pagination.Stream[string] {
	params := &DistinctDIDsParams{
		Target:     identity.Normalize(actor),
		Collection: atproto.BlockCollection,
		Path:       BlockSubjectPath,
	}
	if identity.IsDID(params.Target) || c.resolver == nil {
		return c.linkingDIDs(params, nil, "blocked_by")
	}

	prepare := func(ctx context.Context) error {
		ident, err := c.resolver.Resolve(ctx, params.Target)
		if err != nil {
			return err
		}
		params.Target = ident.DID
		return nil
	}
	return c.linkingDIDs(params, prepare, "blocked_by")
}

// linkingDIDs pages through the links selected by params. The prepare step
// may still fill in params before the first fetch.
func (c *Client) linkingDIDs(params *DistinctDIDsParams, prepare pagination.PrepareFunc, name string) *pagination.Stream[string] {
	fetch := func(ctx context.Context, cursor string) (pagination.Page[string], error) {
		req := *params
		req.Cursor = cursor
		resp, err := c.DistinctDIDs(ctx, req)
		if err != nil {
			return pagination.Page[string]{}, err
		}

		page := pagination.Page[string]{Items: resp.LinkingDIDs}
		if resp.Cursor != nil {
			page.Cursor = *resp.Cursor
		}
		return page, nil
	}

	opts := []pagination.StreamOption{
		pagination.WithName(name),
		pagination.WithLogger(c.logger),
		pagination.WithCursor(params.Cursor),
	}
	if prepare != nil {
		opts = append(opts, pagination.WithPrepare(prepare))
	}
	return pagination.NewStream(fetch, opts...)
}
