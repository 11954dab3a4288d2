package store

import (
	"context"
	"sync"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// Published is one rate recorded by FakeStore.
type Published struct {
	Channel pulse.Channel
	Rate    float64
}

// FakeStore records published rates and returns scripted commands for test assertions.
type FakeStore struct {
	mu sync.Mutex

	// Commands contains scripted raw command values.
	// Each call to FetchCommand consumes the next one; the last repeats.
	Commands []string
	index    int

	// Fetches counts FetchCommand calls.
	Fetches int

	// Published contains all rates that were published.
	Published []Published

	// FetchError, if set, will be returned by FetchCommand.
	FetchError error

	// PublishError, if set, will be returned by PublishRate.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakeStore creates a FakeStore that returns the given commands.
func NewFakeStore(commands ...string) *FakeStore {
	return &FakeStore{Commands: commands, Connected: true}
}

// FetchCommand returns the next scripted command.
func (f *FakeStore) FetchCommand(ctx context.Context) (logic.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Fetches++
	if f.FetchError != nil {
		return logic.CommandUnknown, transient("fetch command", f.FetchError)
	}
	if len(f.Commands) == 0 {
		return logic.CommandUnknown, transient("fetch command", ErrNoCommand)
	}

	raw := f.Commands[f.index]
	if f.index < len(f.Commands)-1 {
		f.index++
	}
	return logic.ParseCommand(raw), nil
}

// PublishRate records the rate.
func (f *FakeStore) PublishRate(ctx context.Context, channel pulse.Channel, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return transient("publish "+channel.String(), f.PublishError)
	}
	f.Published = append(f.Published, Published{Channel: channel, Rate: rate})
	return nil
}

// SetFetchError changes the fetch error under the lock.
func (f *FakeStore) SetFetchError(err error) {
	f.mu.Lock()
	f.FetchError = err
	f.mu.Unlock()
}

// SetPublishError changes the publish error under the lock.
func (f *FakeStore) SetPublishError(err error) {
	f.mu.Lock()
	f.PublishError = err
	f.mu.Unlock()
}

// PublishedRates returns a copy of the published rates.
func (f *FakeStore) PublishedRates() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.Published...)
}

// IsConnected reports whether the fake store is "connected".
func (f *FakeStore) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the store as closed.
func (f *FakeStore) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded calls and scripted errors.
func (f *FakeStore) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Fetches = 0
	f.Published = nil
	f.FetchError = nil
	f.PublishError = nil
	f.Closed = false
}
