package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Paths served by MockAtproto.
const (
	ListRecordsPath  = "/xrpc/com.atproto.repo.listRecords"
	DistinctDIDsPath = "/links/distinct-dids"
	handlePrefix     = "/handle/"
)

// MockRecord is a stored repository record.
type MockRecord struct {
	URI   string `json:"uri"`
	CID   string `json:"cid"`
	Value any    `json:"value"`
}

type mockAccount struct {
	handle  string
	withPDS bool
}

// MockAtproto serves a PLC directory, a PDS and a Constellation index from
// one in-memory server. The PDS endpoint advertised in DID documents is the
// server itself.
type MockAtproto struct {
	*MockServer

	data sync.RWMutex

	accounts map[string]mockAccount
	handles  map[string]string
	records  map[string]map[string][]MockRecord
	links    map[string][]string

	// LinksPageSize is the number of DIDs per distinct-dids page.
	LinksPageSize int

	// TrailingEmptyPage makes listings return a cursor with their last
	// non-empty page, so clients see one extra empty page.
	TrailingEmptyPage bool
}

// NewMockAtproto starts an empty mock network.
func NewMockAtproto() *MockAtproto {
	m := &MockAtproto{
		accounts:      make(map[string]mockAccount),
		handles:       make(map[string]string),
		records:       make(map[string]map[string][]MockRecord),
		links:         make(map[string][]string),
		LinksPageSize: 100,
	}
	m.MockServer = NewMockServer(m.route)
	return m
}

// HandleURL returns the URL serving the well-known DID of handle.
func (m *MockAtproto) HandleURL(handle string) string {
	return m.URL() + handlePrefix + handle + "/.well-known/atproto-did"
}

// AddAccount registers did with handle and a PDS endpoint pointing at this
// server.
func (m *MockAtproto) AddAccount(did, handle string) {
	m.addAccount(did, handle, true)
}

// AddAccountWithoutPDS registers did with a document lacking a PDS service.
func (m *MockAtproto) AddAccountWithoutPDS(did, handle string) {
	m.addAccount(did, handle, false)
}

func (m *MockAtproto) addAccount(did, handle string, withPDS bool) {
	m.data.Lock()
	defer m.data.Unlock()

	m.accounts[did] = mockAccount{handle: handle, withPDS: withPDS}
	if handle != "" {
		m.handles[strings.ToLower(handle)] = did
	}
}

// AddRecord appends a record with value to the collection of did and
// returns its URI.
func (m *MockAtproto) AddRecord(did, collection string, value any) string {
	m.data.Lock()
	defer m.data.Unlock()

	if m.records[did] == nil {
		m.records[did] = make(map[string][]MockRecord)
	}
	n := len(m.records[did][collection])
	uri := fmt.Sprintf("at://%s/%s/3k%06d", did, collection, n)
	m.records[did][collection] = append(m.records[did][collection], MockRecord{
		URI:   uri,
		CID:   fmt.Sprintf("bafyrei%06d", n),
		Value: value,
	})
	return uri
}

// AddBlock records that did blocks subject, in the repository of did and in
// the backlink index.
func (m *MockAtproto) AddBlock(did, subject string) string {
	uri := m.AddRecord(did, "app.bsky.graph.block", map[string]any{
		"$type":     "app.bsky.graph.block",
		"subject":   subject,
		"createdAt": "2024-01-01T00:00:00.000Z",
	})
	m.AddBacklink(subject, "app.bsky.graph.block", ".subject", did)
	return uri
}

// AddBacklink indexes did as linking to target through collection and path.
func (m *MockAtproto) AddBacklink(target, collection, path, did string) {
	m.data.Lock()
	defer m.data.Unlock()

	key := linkKey(target, collection, path)
	for _, existing := range m.links[key] {
		if existing == did {
			return
		}
	}
	m.links[key] = append(m.links[key], did)
}

func linkKey(target, collection, path string) string {
	return target + "|" + collection + "|" + path
}

func (m *MockAtproto) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == ListRecordsPath:
		m.listRecords(w, r)
	case r.URL.Path == DistinctDIDsPath:
		m.distinctDIDs(w, r)
	case strings.HasPrefix(r.URL.Path, handlePrefix):
		m.wellKnownDID(w, r)
	case strings.HasPrefix(r.URL.Path, "/did:plc:"):
		m.plcDocument(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockAtproto) wellKnownDID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, handlePrefix)
	handle, _, _ := strings.Cut(rest, "/")

	m.data.RLock()
	did, ok := m.handles[strings.ToLower(handle)]
	m.data.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, did)
}

func (m *MockAtproto) plcDocument(w http.ResponseWriter, r *http.Request) {
	did := strings.TrimPrefix(r.URL.Path, "/")

	m.data.RLock()
	account, ok := m.accounts[did]
	m.data.RUnlock()

	if !ok {
		writeXRPCError(w, http.StatusNotFound, "NotFound", "DID not registered: "+did)
		return
	}

	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       did,
	}
	if account.handle != "" {
		doc["alsoKnownAs"] = []string{"at://" + account.handle}
	}
	if account.withPDS {
		doc["service"] = []map[string]string{{
			"id":              "#atproto_pds",
			"type":            "AtprotoPersonalDataServer",
			"serviceEndpoint": m.URL(),
		}}
	}
	writeJSON(w, doc)
}

func (m *MockAtproto) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repo := q.Get("repo")
	collection := q.Get("collection")
	if repo == "" || collection == "" {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "repo and collection are required")
		return
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	m.data.RLock()
	_, known := m.accounts[repo]
	all := m.records[repo][collection]
	trailing := m.TrailingEmptyPage
	m.data.RUnlock()

	if !known {
		writeXRPCError(w, http.StatusBadRequest, "RepoNotFound", "Could not find repo: "+repo)
		return
	}

	start, ok := parseOffset(q.Get("cursor"))
	if !ok {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
		return
	}

	page, next := paginate(all, start, limit, trailing)
	resp := map[string]any{"records": page}
	if next != "" {
		resp["cursor"] = next
	}
	writeJSON(w, resp)
}

func (m *MockAtproto) distinctDIDs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	collection := q.Get("collection")
	path := q.Get("path")
	if target == "" || collection == "" || path == "" {
		http.Error(w, "target, collection and path are required", http.StatusBadRequest)
		return
	}

	m.data.RLock()
	all := m.links[linkKey(target, collection, path)]
	size := m.LinksPageSize
	trailing := m.TrailingEmptyPage
	m.data.RUnlock()

	start, ok := parseOffset(q.Get("cursor"))
	if !ok {
		http.Error(w, "malformed cursor", http.StatusBadRequest)
		return
	}

	page, next := paginate(all, start, size, trailing)
	resp := map[string]any{
		"total":        len(all),
		"linking_dids": page,
		"cursor":       nil,
	}
	if next != "" {
		resp["cursor"] = next
	}
	writeJSON(w, resp)
}

func paginate[T any](all []T, start, limit int, trailing bool) ([]T, string) {
	if start > len(all) {
		start = len(all)
	}
	end := min(start+limit, len(all))
	page := append([]T{}, all[start:end]...)

	next := ""
	if end < len(all) || (trailing && len(page) > 0) {
		next = strconv.Itoa(end)
	}
	return page, next
}

func parseOffset(cursor string) (int, bool) {
	if cursor == "" {
		return 0, true
	}
	n, err := strconv.Atoi(cursor)
	return n, err == nil && n >= 0
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeXRPCError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": name, "message": message})
}
