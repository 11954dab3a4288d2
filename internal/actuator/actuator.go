// Package actuator owns the pump relay and the ActuatorState that mirrors it.
package actuator

import (
	"fmt"

	"github.com/yugeshweb/AquaFlow/internal/gpio"
	"github.com/yugeshweb/AquaFlow/internal/logic"
)

// AutoPolicy decides the relay state while the command is AUTO.
// It is a reserved hook for closed-loop control; without one AUTO keeps the
// current state.
type AutoPolicy func(current logic.ActuatorState) logic.ActuatorState

// Option configures a Controller.
type Option func(*Controller)

// WithAutoPolicy installs the policy used for AUTO.
func WithAutoPolicy(p AutoPolicy) Option {
	return func(c *Controller) {
		c.auto = p
	}
}

// Controller maps commands to relay writes. It is the only writer of the
// relay and must be driven from a single goroutine.
type Controller struct {
	relay gpio.Relay
	state logic.ActuatorState
	auto  AutoPolicy
}

// New creates a controller and drives the relay to the de-energized state.
func New(relay gpio.Relay, opts ...Option) (*Controller, error) {
	c := &Controller{
		relay: relay,
		state: logic.StateDeEnergized,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := relay.Set(false); err != nil {
		return nil, fmt.Errorf("de-energize relay at startup: %w", err)
	}
	return c, nil
}

// Apply feeds one command to the controller and returns the resulting state.
// ON and OFF re-assert the relay every time. AUTO without a policy and
// unrecognized commands leave the relay untouched; the latter also return
// logic.ErrUnrecognizedCommand. If the relay write fails the state is unchanged.
func (c *Controller) Apply(cmd logic.Command) (logic.ActuatorState, error) {
	next, err := logic.Transition(c.state, cmd)
	if err != nil {
		return c.state, err
	}

	if cmd == logic.CommandAuto {
		if c.auto == nil {
			return c.state, nil
		}
		next = c.auto(c.state)
		if next != logic.StateEnergized {
			next = logic.StateDeEnergized
		}
	}

	if err := c.relay.Set(next.Energized()); err != nil {
		return c.state, fmt.Errorf("drive relay %s: %w", next, err)
	}
	c.state = next
	return c.state, nil
}

// State returns the current actuator state.
func (c *Controller) State() logic.ActuatorState {
	return c.state
}

// Close de-energizes and releases the relay.
func (c *Controller) Close() error {
	c.state = logic.StateDeEnergized
	return c.relay.Close()
}
