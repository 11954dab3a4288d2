// Package gpio provides the flow sensor inputs and pump relay output with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Relay drives the pump relay output.
type Relay interface {
	// Set energizes (true) or de-energizes (false) the relay.
	// Repeating the current value is harmless.
	Set(energized bool) error

	// Close de-energizes the relay and releases GPIO resources.
	Close() error
}

// Inputs delivers falling edges from the flow sensor lines.
type Inputs interface {
	// Levels returns the current raw level of each input line in request order.
	Levels() ([]int, error)

	// Close stops edge delivery and releases GPIO resources.
	Close() error
}

// EdgeHandler is called once per falling edge on the GPIO event goroutine.
// It must not block.
type EdgeHandler func()

// Input binds a line to the handler that receives its edges.
type Input struct {
	Pin    int
	OnEdge EdgeHandler
}

// DefaultChip is the GPIO character device of the Pi header.
const DefaultChip = "gpiochip0"

// Pin definitions (BCM numbering)
const (
	DefaultPinFlow1 = 18 // Flow sensor 1 (YF-S401)
	DefaultPinFlow2 = 19 // Flow sensor 2 (YF-S401)
	DefaultPinRelay = 23 // Pump relay, active low
)
