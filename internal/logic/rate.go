package logic

import "time"

const (
	// DefaultPulsesPerUnit is the YF-S401 calibration: 7.5 Hz per L/min.
	DefaultPulsesPerUnit = 7.5

	// DefaultWindow is the nominal sampling cadence.
	DefaultWindow = time.Second
)

// Sampler converts raw pulse counts into a flow rate.
type Sampler struct {
	// PulsesPerUnit is the sensor calibration: pulses per second for a flow of 1 L/min.
	PulsesPerUnit float64
	// Window is the nominal sampling window.
	Window time.Duration
	// CorrectDrift divides by the measured elapsed time instead of assuming
	// every window lasted exactly Window.
	CorrectDrift bool
}

// DefaultSampler returns a sampler for a YF-S401 sensor with drift correction on.
func DefaultSampler() Sampler {
	return Sampler{
		PulsesPerUnit: DefaultPulsesPerUnit,
		Window:        DefaultWindow,
		CorrectDrift:  true,
	}
}

// Sample returns the flow rate in L/min for count pulses collected over elapsed.
// A non-positive elapsed duration yields 0.
//
// With a nominal 1s window this is count/PulsesPerUnit, scaled by
// Window/elapsed when drift correction is on.
func (s Sampler) Sample(elapsed time.Duration, count uint64) float64 {
	if s.Check(elapsed) != nil || s.PulsesPerUnit <= 0 {
		return 0
	}
	window := s.Window
	if s.CorrectDrift || window <= 0 {
		window = elapsed
	}
	return float64(count) / s.PulsesPerUnit / window.Seconds()
}

// Check reports ErrZeroElapsed for a window with no measurable duration.
func (s Sampler) Check(elapsed time.Duration) error {
	if elapsed <= 0 {
		return ErrZeroElapsed
	}
	return nil
}

// Volume returns the liters that count pulses represent.
// One liter is PulsesPerUnit*60 pulses.
func (s Sampler) Volume(count uint64) float64 {
	if s.PulsesPerUnit <= 0 {
		return 0
	}
	return float64(count) / (s.PulsesPerUnit * 60)
}
