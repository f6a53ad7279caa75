// Package ratelimit bounds the number of concurrent requests per destination
// host. Requests beyond the limit for a host wait in arrival order; requests
// to other hosts are never blocked by them.
package ratelimit

// DefaultMaxPerHost is the number of concurrent requests allowed per host
// when no explicit limit is configured.
const DefaultMaxPerHost = 5

// HostState is a point-in-time snapshot of the slots of one host.
type HostState struct {
	// Key is the destination key, usually host[:port].
	Key string `json:"key"`

	// InFlight is the number of operations currently holding a slot.
	InFlight int `json:"in_flight"`

	// Waiting is the number of callers queued for a slot.
	Waiting int `json:"waiting"`

	// Max is the configured slot count for the host.
	Max int `json:"max"`
}

// Saturated returns true if every slot is taken, so a new caller would queue.
func (s HostState) Saturated() bool {
	return s.InFlight >= s.Max
}

// Available returns the number of free slots.
// Returns 0 if the host is saturated.
func (s HostState) Available() int {
	free := s.Max - s.InFlight
	if free < 0 {
		return 0
	}
	return free
}

// Idle returns true if no operation holds or waits for a slot.
func (s HostState) Idle() bool {
	return s.InFlight == 0 && s.Waiting == 0
}
