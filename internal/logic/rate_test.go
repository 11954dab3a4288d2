package logic

import (
	"errors"
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSampleNominalWindow(t *testing.T) {
	s := DefaultSampler()

	got := s.Sample(1000*time.Millisecond, 15)
	if got != 2.0 {
		t.Errorf("Sample(1000ms, 15): got %v, want 2.0", got)
	}
}

func TestSampleZeroElapsed(t *testing.T) {
	s := DefaultSampler()

	if got := s.Sample(0, 5); got != 0 {
		t.Errorf("Sample(0, 5): got %v, want 0", got)
	}
	if got := s.Sample(-time.Second, 5); got != 0 {
		t.Errorf("Sample(-1s, 5): got %v, want 0", got)
	}
	if err := s.Check(0); !errors.Is(err, ErrZeroElapsed) {
		t.Errorf("Check(0): got %v, want ErrZeroElapsed", err)
	}
	if err := s.Check(time.Millisecond); err != nil {
		t.Errorf("Check(1ms): unexpected error %v", err)
	}
}

func TestSampleZeroCount(t *testing.T) {
	s := DefaultSampler()
	if got := s.Sample(time.Second, 0); got != 0 {
		t.Errorf("Sample(1s, 0): got %v, want 0", got)
	}
}

func TestSampleDriftCorrection(t *testing.T) {
	tests := []struct {
		name    string
		correct bool
		elapsed time.Duration
		count   uint64
		want    float64
	}{
		{"late window corrected", true, 1250 * time.Millisecond, 15, 1.6},
		{"early window corrected", true, 500 * time.Millisecond, 15, 4.0},
		{"late window uncorrected", false, 1250 * time.Millisecond, 15, 2.0},
		{"early window uncorrected", false, 500 * time.Millisecond, 15, 2.0},
		{"nominal uncorrected", false, time.Second, 75, 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSampler()
			s.CorrectDrift = tt.correct
			got := s.Sample(tt.elapsed, tt.count)
			if !approx(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleCustomCalibration(t *testing.T) {
	// YF-S201: 7.5 is replaced by 11 Hz per L/min.
	s := Sampler{PulsesPerUnit: 11, Window: time.Second, CorrectDrift: true}
	if got := s.Sample(time.Second, 22); !approx(got, 2.0) {
		t.Errorf("got %v, want 2.0", got)
	}
}

func TestSampleInvalidCalibration(t *testing.T) {
	s := Sampler{PulsesPerUnit: 0, Window: time.Second}
	if got := s.Sample(time.Second, 10); got != 0 {
		t.Errorf("got %v, want 0 for zero calibration", got)
	}
	if got := s.Volume(10); got != 0 {
		t.Errorf("Volume: got %v, want 0 for zero calibration", got)
	}
}

func TestSampleLongerNominalWindow(t *testing.T) {
	// 30 pulses over a nominal 2s window at 7.5 Hz per L/min is 2 L/min.
	s := Sampler{PulsesPerUnit: 7.5, Window: 2 * time.Second}
	if got := s.Sample(2*time.Second, 30); !approx(got, 2.0) {
		t.Errorf("got %v, want 2.0", got)
	}
}

func TestVolume(t *testing.T) {
	s := DefaultSampler()
	// 450 pulses is one liter for a 7.5 Hz per L/min sensor.
	if got := s.Volume(450); !approx(got, 1.0) {
		t.Errorf("Volume(450): got %v, want 1.0", got)
	}
	if got := s.Volume(0); got != 0 {
		t.Errorf("Volume(0): got %v, want 0", got)
	}
}
