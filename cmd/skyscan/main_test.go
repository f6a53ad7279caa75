package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sternrassler/skyscan/internal/app"
	"github.com/Sternrassler/skyscan/internal/testutil"
	"github.com/Sternrassler/skyscan/pkg/identity"
)

func TestRun_Version(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := run(context.Background(), []string{"version"}, stdout, stderr)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "skyscan version")
	assert.Empty(t, stderr.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)

	code := run(context.Background(), []string{"nope"}, stdout, stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "Error:")
}

func TestRun_Cancelled(t *testing.T) {
	mock := testutil.NewMockAtproto()
	defer mock.Close()
	mock.AddAccount("did:plc:alice", "alice.test")

	t.Setenv("SKYSCAN_PLC_URL", mock.URL())
	t.Setenv("SKYSCAN_CONSTELLATION_URL", mock.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := run(ctx, []string{"blocks", "did:plc:alice"}, stdout, stderr,
		app.WithDirectoryOptions(identity.WithHandleURL(mock.HandleURL)))
	assert.Equal(t, exitCancelled, code)
	assert.Contains(t, stderr.String(), "cancelled")
}
