// Package pulse accumulates flow sensor edges per channel.
// OnEdge is called from the GPIO event goroutine; Drain from the main loop.
// Both are single atomic operations, so an edge is never lost or counted twice.
package pulse

import (
	"fmt"
	"sync/atomic"
)

// Channel identifies a flow sensor input.
type Channel int

const (
	Channel1 Channel = 1
	Channel2 Channel = 2
)

// Channels lists the supported channels in publish order.
var Channels = []Channel{Channel1, Channel2}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == Channel1 || c == Channel2
}

func (c Channel) String() string {
	return fmt.Sprintf("flow%d", int(c))
}

// Counter accumulates edges for a single channel.
type Counter struct {
	id    Channel
	count atomic.Uint64
}

// NewCounter creates a counter for the given channel.
func NewCounter(id Channel) (*Counter, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("pulse: unsupported channel %d", int(id))
	}
	return &Counter{id: id}, nil
}

// ID returns the channel this counter belongs to.
func (c *Counter) ID() Channel {
	return c.id
}

// OnEdge records one edge. Safe to call concurrently with Drain.
// It does not block, allocate or perform I/O.
func (c *Counter) OnEdge() {
	c.count.Add(1)
}

// Drain returns the number of edges since the previous drain and resets
// the count to zero in the same atomic step.
func (c *Counter) Drain() uint64 {
	return c.count.Swap(0)
}

// Pending returns the number of edges accumulated since the last drain
// without resetting it.
func (c *Counter) Pending() uint64 {
	return c.count.Load()
}
