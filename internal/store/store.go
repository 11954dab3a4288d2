// Package store is the boundary to the remote data store that holds the pump
// command and receives flow rates. Backends: Redis keys and MQTT retained topics.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// Store reads the pump command and publishes flow rates.
type Store interface {
	// FetchCommand returns the current pump command.
	// Errors are transient: the caller keeps its last state and tries again next cycle.
	FetchCommand(ctx context.Context) (logic.Command, error)

	// PublishRate writes the latest rate (L/min) for a channel.
	// A failed publish is not retried.
	PublishRate(ctx context.Context, channel pulse.Channel, rate float64) error

	// Close releases the connection.
	Close() error
}

// ConnectionStatus reports whether the backend connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandKey is the key (or topic suffix) that holds the pump command.
const CommandKey = "pump"

// RateKey returns the key (or topic suffix) that receives a channel's rate.
func RateKey(ch pulse.Channel) string {
	return ch.String()
}

// FormatRate renders a rate the way it is stored remotely.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64)
}

var (
	// ErrTransient matches every TransientError.
	ErrTransient = errors.New("transient store error")

	// ErrNoCommand is returned when the store holds no command yet.
	ErrNoCommand = errors.New("no command set")

	// ErrNotConnected is returned when the backend connection is down.
	ErrNotConnected = errors.New("not connected")
)

// TransientError is a failed remote read or write. It is recoverable:
// the control loop logs it and carries on.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransient) true for every TransientError.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
