package logic

import (
	"math"

	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// DefaultLeakTolerance is the largest flow1/flow2 difference (L/min) still
// considered normal.
const DefaultLeakTolerance = 0.05

// DefaultPricePerLiter is the water tariff used for the cost figure.
const DefaultPricePerLiter = 0.3

// Usage accumulates the volume that passed each channel since startup.
type Usage struct {
	Liters        map[pulse.Channel]float64
	PricePerLiter float64
}

// NewUsage creates an empty usage accumulator.
func NewUsage(pricePerLiter float64) *Usage {
	return &Usage{
		Liters:        make(map[pulse.Channel]float64),
		PricePerLiter: pricePerLiter,
	}
}

// Add records liters for a channel.
func (u *Usage) Add(channel pulse.Channel, liters float64) {
	if liters <= 0 {
		return
	}
	u.Liters[channel] += liters
}

// Total returns the volume of a channel.
func (u *Usage) Total(channel pulse.Channel) float64 {
	return u.Liters[channel]
}

// Cost returns the price of the volume delivered on channel.
func (u *Usage) Cost(channel pulse.Channel) float64 {
	return u.Liters[channel] * u.PricePerLiter
}

// Leak reports whether two rates that should match differ by tolerance or more.
// Inlet and outlet sensors on the same pipe read the same flow when nothing leaks.
func Leak(inlet, outlet, tolerance float64) bool {
	return math.Abs(inlet-outlet) >= tolerance
}
