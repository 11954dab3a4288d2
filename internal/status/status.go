// Package status provides a thread-safe status tracker for the flow controller.
// It is read by the HTTP handlers while the control loop writes it.
package status

import (
	"sync"
	"time"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// RecentSamples is the number of rate samples kept for display.
const RecentSamples = 32

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	WindowMs      int64
	DebounceMs    int64
	PulsesPerUnit float64
	CorrectDrift  bool
	Backend       string
	StoreAddr     string
	HTTPAddr      string
	History       bool
}

// ChannelStatus is the latest view of one flow channel.
type ChannelStatus struct {
	Rate    float64 // L/min, last window
	Pending uint64  // pulses since the last drain
	Liters  float64 // since startup
	Cost    float64
	Flowing bool
}

// Counts are cumulative loop counters.
type Counts struct {
	Cycles        int
	Windows       int
	Publishes     int
	PublishErrors int
	FetchErrors   int
	BadCommands   int // changes to an unrecognized command
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Actuator       logic.ActuatorState
	Command        logic.Command
	CommandAt      time.Time
	Flow1          ChannelStatus
	Flow2          ChannelStatus
	Leak           bool
	Counts         Counts
	Recent         []logic.RateSample // oldest first
	StartTime      time.Time
	Now            time.Time
	StoreConnected bool
	Breaker        string
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Channel returns the status of ch.
func (s Snapshot) Channel(ch pulse.Channel) ChannelStatus {
	if ch == pulse.Channel2 {
		return s.Flow2
	}
	return s.Flow1
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	recent *sampleRing

	fetched logic.Command // last command from the store, "" before the first
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Actuator:  logic.StateDeEnergized,
			Command:   logic.CommandUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
		recent: newSampleRing(RecentSamples),
	}
}

func (t *Tracker) channel(ch pulse.Channel) *ChannelStatus {
	if ch == pulse.Channel2 {
		return &t.snap.Flow2
	}
	return &t.snap.Flow1
}

// Cycle counts one loop cycle and records the pending pulse counts.
func (t *Tracker) Cycle(pending1, pending2 uint64) {
	t.mu.Lock()
	t.snap.Counts.Cycles++
	t.snap.Flow1.Pending = pending1
	t.snap.Flow2.Pending = pending2
	t.mu.Unlock()
}

// SetCommand records a fetched command and the resulting actuator state.
func (t *Tracker) SetCommand(cmd logic.Command, state logic.ActuatorState, at time.Time) {
	t.mu.Lock()
	t.snap.Command = cmd
	t.snap.CommandAt = at
	t.snap.Actuator = state
	if cmd == logic.CommandUnknown && t.fetched != logic.CommandUnknown {
		t.snap.Counts.BadCommands++
	}
	t.fetched = cmd
	t.mu.Unlock()
}

// FetchFailed counts a failed command fetch.
func (t *Tracker) FetchFailed() {
	t.mu.Lock()
	t.snap.Counts.FetchErrors++
	t.mu.Unlock()
}

// RecordSample stores a window's sample with the channel's usage totals.
func (t *Tracker) RecordSample(s logic.RateSample, liters, cost float64) {
	t.mu.Lock()
	c := t.channel(s.Channel)
	c.Rate = s.Rate
	c.Liters = liters
	c.Cost = cost
	c.Flowing = s.Rate > 0
	t.recent.push(s)
	t.mu.Unlock()
}

// RecordWindow counts a completed window and sets the leak indicator.
func (t *Tracker) RecordWindow(leak bool) {
	t.mu.Lock()
	t.snap.Counts.Windows++
	t.snap.Leak = leak
	t.mu.Unlock()
}

// RecordPublish counts a publish outcome.
func (t *Tracker) RecordPublish(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Counts.PublishErrors++
	} else {
		t.snap.Counts.Publishes++
	}
	t.mu.Unlock()
}

// SetStore sets the store connection status and breaker state.
func (t *Tracker) SetStore(connected bool, breaker string) {
	t.mu.Lock()
	t.snap.StoreConnected = connected
	t.snap.Breaker = breaker
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Recent = t.recent.items()
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
