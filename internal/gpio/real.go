//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealInputs counts edges on actual hardware using the Linux GPIO character device.
type RealInputs struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealInputs requests each input line with pull-up and falling-edge
// detection. Edges are delivered to the input's handler from the gpiocdev
// watcher goroutine. A zero debounce disables kernel debouncing.
func NewRealInputs(chipName string, debounce time.Duration, inputs ...Input) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealInputs{chip: chip}
	for _, in := range inputs {
		onEdge := in.OnEdge
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				onEdge()
			}),
		}
		if debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(debounce))
		}

		line, err := chip.RequestLine(in.Pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input pin %d: %w", in.Pin, err)
		}
		r.lines = append(r.lines, line)
	}

	return r, nil
}

// Levels returns the raw level of each input line.
func (r *RealInputs) Levels() ([]int, error) {
	levels := make([]int, 0, len(r.lines))
	for _, l := range r.lines {
		v, err := l.Value()
		if err != nil {
			return nil, fmt.Errorf("read input pin %d: %w", l.Offset(), err)
		}
		levels = append(levels, v)
	}
	return levels, nil
}

// Close releases the input lines and the chip.
func (r *RealInputs) Close() error {
	var errs []error
	for _, l := range r.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input pin %d: %w", l.Offset(), err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRelay drives the pump relay on actual hardware.
type RealRelay struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealRelay requests the relay line as an active-low output that starts
// de-energized, so the pump is off from the moment the line is claimed.
func NewRealRelay(chipName string, pin int) (*RealRelay, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsActiveLow, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}

	return &RealRelay{chip: chip, line: line}, nil
}

// Set drives the relay. With the line active low, logical 1 pulls the pin LOW
// and energizes the relay.
func (r *RealRelay) Set(energized bool) error {
	v := 0
	if energized {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay pin %d: %w", r.line.Offset(), err)
	}
	return nil
}

// Close de-energizes the relay and releases it.
// The line is left as an input with pull-up so the relay module stays off
// while nothing drives it.
func (r *RealRelay) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("de-energize relay: %w", err))
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
		r.line = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
