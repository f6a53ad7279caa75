package atproto

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/skyscan/pkg/client"
	"github.com/Sternrassler/skyscan/pkg/identity"
	"github.com/Sternrassler/skyscan/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// BlockCollection is the collection holding block records.
	BlockCollection = "app.bsky.graph.block"

	// DefaultPageSize is the page size requested from the PDS.
	DefaultPageSize = 100

	// MaxPageSize is the largest page size a PDS accepts.
	MaxPageSize = 100

	listRecordsPath = "/xrpc/com.atproto.repo.listRecords"
)

// Record is one repository record. Value holds the undecoded record body.
type Record struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

type listRecordsOutput struct {
	Records []Record `json:"records"`
	Cursor  *string  `json:"cursor,omitempty"`
}

// Client lists repository records.
type Client struct {
	http     *client.Client
	resolver *identity.Resolver
	pageSize int
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize sets the number of records requested per page, clamped to
// [1, MaxPageSize].
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = clampPageSize(n)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// NewClient creates a client sending requests through httpClient and
// resolving accounts through resolver.
func NewClient(httpClient *client.Client, resolver *identity.Resolver, opts ...Option) *Client {
	c := &Client{
		http:     httpClient,
		resolver: resolver,
		pageSize: DefaultPageSize,
		logger:   log.With().Str("component", "atproto").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListRecordsPage fetches one page of collection from the repository of
// ident, starting after cursor.
func (c *Client) ListRecordsPage(ctx context.Context, ident *identity.Identity, collection, cursor string) (pagination.Page[Record], error) {
	query := url.Values{
		"repo":       {ident.DID},
		"collection": {collection},
		"limit":      {strconv.Itoa(c.pageSize)},
		"cursor":     {cursor},
	}

	var out listRecordsOutput
	if err := c.http.GetJSON(ctx, strings.TrimRight(ident.PDS, "/")+listRecordsPath, query, &out); err != nil {
		return pagination.Page[Record]{}, err
	}

	page := pagination.Page[Record]{Items: out.Records}
	if out.Cursor != nil {
		page.Cursor = *out.Cursor
	}
	return page, nil
}

// ListRecords streams every record of collection in the repository of
// actor, a handle or DID.
func (c *Client) ListRecords(actor, collection string) *pagination.Stream[Record] {
	return listStream(c, actor, collection, "records", func(records []Record) []Record {
		return records
	})
}

// Blocks streams the subjects blocked by actor. Records whose subject is
// not a string are skipped.
func (c *Client) Blocks(actor string) *pagination.Stream[string] {
	return listStream(c, actor, BlockCollection, "blocks", blockSubjects)
}

// listStream builds a stream that resolves actor on first pull and then
// pages through collection, mapping every page with convert.
func listStream[T any](c *Client, actor, collection, name string, convert func([]Record) []T) *pagination.Stream[T] {
	var ident *identity.Identity

	prepare := func(ctx context.Context) error {
		resolved, err := c.resolver.Resolve(ctx, actor)
		if err != nil {
			return err
		}
		ident = resolved
		c.logger.Debug().
			Str("actor", actor).
			Str("did", ident.DID).
			Str("pds", ident.PDS).
			Str("collection", collection).
			Msg("Listing records")
		return nil
	}

	fetch := func(ctx context.Context, cursor string) (pagination.Page[T], error) {
		page, err := c.ListRecordsPage(ctx, ident, collection, cursor)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		return pagination.Page[T]{Items: convert(page.Items), Cursor: page.Cursor}, nil
	}

	return pagination.NewStream(fetch,
		pagination.WithPrepare(prepare),
		pagination.WithName(name),
		pagination.WithLogger(c.logger),
	)
}

// blockSubjects extracts the string subjects of block records.
func blockSubjects(records []Record) []string {
	subjects := make([]string, 0, len(records))
	for _, rec := range records {
		var body struct {
			Subject any `json:"subject"`
		}
		if err := json.Unmarshal(rec.Value, &body); err != nil {
			continue
		}
		if subject, ok := body.Subject.(string); ok {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}
