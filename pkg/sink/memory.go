package sink

import (
	"context"
	"sync"
)

// Memory keeps every written value, grouped by stream.
type Memory struct {
	mu      sync.Mutex
	streams map[string][]string
}

var _ Writer = (*Memory)(nil)

// NewMemory creates an empty in-memory writer.
func NewMemory() *Memory {
	return &Memory{streams: make(map[string][]string)}
}

// Write implements Writer.
func (m *Memory) Write(ctx context.Context, stream string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.streams[stream] = append(m.streams[stream], values...)
	return nil
}

// Values returns a copy of the values written to stream, in write order.
func (m *Memory) Values(stream string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.streams[stream]...)
}

// Close implements Writer.
func (m *Memory) Close() error {
	return nil
}
