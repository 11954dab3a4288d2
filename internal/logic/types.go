// Package logic contains the pure control logic for the flow controller.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
// Time is always injectable via time.Time / time.Duration parameters.
package logic

import (
	"errors"
	"time"

	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// Command is the tri-state actuator command read from the remote store.
type Command string

const (
	CommandOn      Command = "ON"
	CommandOff     Command = "OFF"
	CommandAuto    Command = "AUTO"
	CommandUnknown Command = "UNKNOWN"
)

// ActuatorState is the physical state of the pump relay.
type ActuatorState string

const (
	StateDeEnergized ActuatorState = "DE_ENERGIZED"
	StateEnergized   ActuatorState = "ENERGIZED"
)

// Energized reports whether the relay should be asserted.
func (s ActuatorState) Energized() bool {
	return s == StateEnergized
}

var (
	// ErrUnrecognizedCommand is returned for command strings that are not ON, OFF or AUTO.
	ErrUnrecognizedCommand = errors.New("unrecognized command")

	// ErrZeroElapsed is returned when a sampling window has no measurable duration.
	ErrZeroElapsed = errors.New("zero elapsed window")
)

// RateSample is the rate computed for one channel over one window.
type RateSample struct {
	Channel pulse.Channel
	Rate    float64 // L/min
	Count   uint64
	Elapsed time.Duration
	At      time.Time // window end
}
