package gpio

import (
	"errors"
	"sync"
)

// FakeRelay is a test double that records every relay write.
type FakeRelay struct {
	mu sync.Mutex

	// Writes contains every value passed to Set, in order.
	Writes []bool

	// SetError, if set, will be returned by Set and the write is not recorded.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	energized bool
}

// NewFakeRelay creates a de-energized FakeRelay.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Set records the write.
func (f *FakeRelay) Set(energized bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, energized)
	f.energized = energized
	return nil
}

// Energized reports the last successfully written value.
func (f *FakeRelay) Energized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.energized
}

// FailWith makes subsequent writes fail with err (nil restores success).
func (f *FakeRelay) FailWith(err error) {
	f.mu.Lock()
	f.SetError = err
	f.mu.Unlock()
}

// Close de-energizes the relay and marks it closed.
func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.energized = false
	f.Closed = true
	return nil
}

// FakeInputs is a test double that lets tests fire edges on demand.
type FakeInputs struct {
	inputs []Input

	// LevelsValue is returned by Levels.
	LevelsValue []int

	// LevelsError, if set, will be returned by Levels.
	LevelsError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeInputs registers the given inputs.
func NewFakeInputs(inputs ...Input) *FakeInputs {
	return &FakeInputs{inputs: inputs}
}

// Pulse fires n edges on pin, as the GPIO watcher goroutine would.
func (f *FakeInputs) Pulse(pin, n int) error {
	for _, in := range f.inputs {
		if in.Pin != pin {
			continue
		}
		for i := 0; i < n; i++ {
			in.OnEdge()
		}
		return nil
	}
	return errors.New("no input registered on pin")
}

// Levels returns the scripted levels.
func (f *FakeInputs) Levels() ([]int, error) {
	if f.LevelsError != nil {
		return nil, f.LevelsError
	}
	return f.LevelsValue, nil
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}
