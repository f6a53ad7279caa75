package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/skyscan/cmd/skyscan/commands"
	"github.com/Sternrassler/skyscan/internal/app"
	"github.com/Sternrassler/skyscan/internal/testutil"
	"github.com/Sternrassler/skyscan/pkg/identity"
)

func newNetwork(t *testing.T) *testutil.MockAtproto {
	t.Helper()

	mock := testutil.NewMockAtproto()
	t.Cleanup(mock.Close)

	mock.AddAccount("did:plc:alice", "alice.test")
	mock.AddAccount("did:plc:bob", "bob.test")
	mock.AddAccount("did:plc:carol", "carol.test")
	mock.AddBlock("did:plc:alice", "did:plc:bob")
	mock.AddBlock("did:plc:alice", "did:plc:carol")
	mock.AddBlock("did:plc:bob", "did:plc:alice")
	return mock
}

// execute runs args against mock and returns stdout.
func execute(t *testing.T, mock *testutil.MockAtproto, args ...string) (string, error) {
	t.Helper()

	env := map[string]string{
		"SKYSCAN_PLC_URL":           mock.URL(),
		"SKYSCAN_CONSTELLATION_URL": mock.URL(),
		"SKYSCAN_LOG_LEVEL":         "error",
	}

	cli := commands.New(app.WithDirectoryOptions(identity.WithHandleURL(mock.HandleURL)))
	cli.SetEnv(func(key string) string { return env[key] })
	cli.SetArgs(args)

	stdout := new(bytes.Buffer)
	cli.SetOutput(stdout, new(bytes.Buffer))

	err := cli.Execute(context.Background())
	return stdout.String(), err
}

func TestCommands_Blocks(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "blocks", "@Alice.test")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:bob\ndid:plc:carol\n", out)
}

func TestCommands_BlocksLimit(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "blocks", "alice.test", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:bob\n", out)
}

func TestCommands_BlockedByJSON(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "blocked-by", "bob.test", "-o", "json")
	require.NoError(t, err)

	var line struct {
		Stream string `json:"stream"`
		Value  string `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	assert.Equal(t, "blocked_by", line.Stream)
	assert.Equal(t, "did:plc:alice", line.Value)
}

func TestCommands_Links(t *testing.T) {
	mock := newNetwork(t)
	mock.AddBacklink("at://did:plc:bob/app.bsky.feed.post/1", "app.bsky.feed.like", ".subject.uri", "did:plc:carol")

	out, err := execute(t, mock, "links", "at://did:plc:bob/app.bsky.feed.post/1",
		"--collection", "app.bsky.feed.like", "--path", ".subject.uri")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:carol\n", out)
}

func TestCommands_Records(t *testing.T) {
	mock := newNetwork(t)
	uri := mock.AddRecord("did:plc:carol", "app.bsky.feed.post", map[string]any{"text": "hello"})

	out, err := execute(t, mock, "records", "carol.test", "app.bsky.feed.post")
	require.NoError(t, err)
	assert.Equal(t, uri+"\n", out)
}

func TestCommands_Resolve(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "resolve", "alice.test")
	require.NoError(t, err)
	assert.Contains(t, out, "did:    did:plc:alice")
	assert.Contains(t, out, "handle: alice.test")
	assert.Contains(t, out, "pds:    "+mock.URL())
}

func TestCommands_ResolveUnknown(t *testing.T) {
	mock := newNetwork(t)

	_, err := execute(t, mock, "resolve", "nobody.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nobody.test")
}

func TestCommands_Scan(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "scan", "alice.test")
	require.NoError(t, err)
	assert.Contains(t, out, "blocks:     2")
	assert.Contains(t, out, "blocked by: 1")
	assert.Contains(t, out, "mutual:     1")
	assert.Contains(t, out, "  did:plc:bob")
}

func TestCommands_ScanJSON(t *testing.T) {
	mock := newNetwork(t)

	out, err := execute(t, mock, "scan", "alice.test", "--output", "json")
	require.NoError(t, err)

	var result app.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"did:plc:bob"}, result.Mutual)
}

func TestCommands_Errors(t *testing.T) {
	mock := newNetwork(t)

	t.Run("missing argument", func(t *testing.T) {
		_, err := execute(t, mock, "blocks")
		assert.ErrorContains(t, err, "accepts 1 arg")
	})

	t.Run("unknown output format", func(t *testing.T) {
		_, err := execute(t, mock, "blocks", "alice.test", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})

	t.Run("negative limit", func(t *testing.T) {
		_, err := execute(t, mock, "blocks", "alice.test", "--limit", "-1")
		assert.ErrorContains(t, err, "--limit")
	})

	t.Run("flag overrides are validated", func(t *testing.T) {
		_, err := execute(t, mock, "blocks", "alice.test", "--page-size", "500")
		assert.ErrorContains(t, err, "page_size")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, mock, "blocks", "alice.test", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("upstream failure", func(t *testing.T) {
		failing := newNetwork(t)
		failing.SetResponse(testutil.DistinctDIDsPath, testutil.NewServerErrorResponse())

		_, err := execute(t, failing, "blocked-by", "did:plc:alice")
		assert.ErrorContains(t, err, "HTTP 500")
	})
}

func TestCommands_ConfigFile(t *testing.T) {
	mock := newNetwork(t)

	path := filepath.Join(t.TempDir(), "skyscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: 1\n"), 0o600))

	out, err := execute(t, mock, "blocks", "alice.test", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Equal(t, 2, mock.GetPathCount(testutil.ListRecordsPath), "one request per single-record page")
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New()
	cli.SetArgs([]string{"version"})

	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)

	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "skyscan version "+commands.Version+"\n", buf.String())
}
