// Package syncloop runs the fixed-cadence control cycle: read the pump
// command, drive the relay, and once per sampling window turn the pulse
// counts into rates and publish them.
package syncloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yugeshweb/AquaFlow/internal/actuator"
	"github.com/yugeshweb/AquaFlow/internal/history"
	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/metrics"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
	"github.com/yugeshweb/AquaFlow/internal/status"
	"github.com/yugeshweb/AquaFlow/internal/store"
)

// DefaultStoreTimeout bounds each remote store call.
const DefaultStoreTimeout = 2 * time.Second

// Config holds the loop parameters.
type Config struct {
	Sampler       logic.Sampler
	StoreTimeout  time.Duration
	LeakTolerance float64
	PricePerLiter float64
}

// DefaultConfig returns the default loop parameters.
func DefaultConfig() Config {
	return Config{
		Sampler:       logic.DefaultSampler(),
		StoreTimeout:  DefaultStoreTimeout,
		LeakTolerance: logic.DefaultLeakTolerance,
		PricePerLiter: logic.DefaultPricePerLiter,
	}
}

// breakerState is implemented by stores wrapped in a circuit breaker.
type breakerState interface {
	State() string
}

// Loop owns the counters' drain side, the controller and the store calls.
// Step and Run must be called from a single goroutine.
type Loop struct {
	cfg      Config
	store    store.Store
	ctrl     *actuator.Controller
	counters []*pulse.Counter

	usage   *logic.Usage
	history history.Recorder
	tracker *status.Tracker
	metrics *metrics.Metrics
	log     zerolog.Logger
	clock   func() time.Time

	windowStart  time.Time
	started      bool
	lastCommand  logic.Command
	fetchFailing bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithHistory hands every sample to r.
func WithHistory(r history.Recorder) Option {
	return func(l *Loop) {
		l.history = r
	}
}

// WithTracker publishes loop state to t.
func WithTracker(t *status.Tracker) Option {
	return func(l *Loop) {
		l.tracker = t
	}
}

// WithMetrics records loop activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithClock sets the clock read at the moment the counters are drained.
// Without one the cycle timestamp passed to Step is used, unless Run
// supplies its clock.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.clock = now
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New creates a loop over the two flow counters.
func New(cfg Config, st store.Store, ctrl *actuator.Controller, flow1, flow2 *pulse.Counter, opts ...Option) (*Loop, error) {
	if st == nil || ctrl == nil {
		return nil, errors.New("syncloop: store and controller are required")
	}
	if flow1 == nil || flow2 == nil || flow1.ID() != pulse.Channel1 || flow2.ID() != pulse.Channel2 {
		return nil, errors.New("syncloop: counters for flow1 and flow2 are required")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}

	l := &Loop{
		cfg:         cfg,
		store:       st,
		ctrl:        ctrl,
		counters:    []*pulse.Counter{flow1, flow2},
		usage:       logic.NewUsage(cfg.PricePerLiter),
		history:     history.Noop{},
		log:         zerolog.Nop(),
		lastCommand: logic.CommandUnknown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Usage returns the accumulated volume per channel.
func (l *Loop) Usage() *logic.Usage {
	return l.usage
}

// Run calls Step on every tick until ctx is cancelled. The first sampling
// window starts when Run is called.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time, now func() time.Time) error {
	if l.clock == nil {
		l.clock = now
	}
	l.markWindow(now())

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("loop stopped")
			return nil
		case <-tick:
			l.Step(ctx, now())
		}
	}
}

func (l *Loop) markWindow(t time.Time) {
	l.windowStart = t
	l.started = true
}

// Step runs one cycle at time now. Errors are logged and never stop the loop.
func (l *Loop) Step(ctx context.Context, now time.Time) {
	if !l.started {
		l.markWindow(now)
	}

	l.syncCommand(ctx, now)

	// the fetch may have blocked; the window is judged on the time now
	if elapsed := l.now(now).Sub(l.windowStart); elapsed >= l.cfg.Sampler.Window {
		if err := l.cfg.Sampler.Check(elapsed); err != nil {
			l.log.Debug().Err(err).Msg("window skipped")
		} else {
			l.sampleWindow(ctx, now)
		}
	}

	l.refresh()
}

// now returns the clock reading, or fallback when the loop has no clock.
// Monotonic when the clock is time.Now.
func (l *Loop) now(fallback time.Time) time.Time {
	if l.clock == nil {
		return fallback
	}
	return l.clock()
}

func (l *Loop) syncCommand(ctx context.Context, now time.Time) {
	cctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	start := time.Now()
	cmd, err := l.store.FetchCommand(cctx)
	cancel()
	if l.metrics != nil {
		l.metrics.ObserveFetch(time.Since(start), err)
	}

	if err != nil {
		if l.tracker != nil {
			l.tracker.FetchFailed()
		}
		if !l.fetchFailing {
			l.log.Warn().Err(err).Str("state", string(l.ctrl.State())).Msg("command fetch failed, keeping state")
			l.fetchFailing = true
		}
		return
	}
	if l.fetchFailing {
		l.log.Info().Msg("command fetch recovered")
		l.fetchFailing = false
	}

	before := l.ctrl.State()
	state, err := l.ctrl.Apply(cmd)
	switch {
	case errors.Is(err, logic.ErrUnrecognizedCommand):
		if cmd != l.lastCommand {
			l.log.Warn().Err(err).Msg("ignoring command")
		}
	case err != nil:
		l.log.Error().Err(err).Str("command", string(cmd)).Msg("relay write failed")
	}

	if cmd != l.lastCommand {
		l.log.Info().Str("command", string(cmd)).Msg("command received")
	}
	if state != before {
		l.log.Info().Str("from", string(before)).Str("to", string(state)).Msg("pump relay changed")
	}
	l.lastCommand = cmd

	if l.tracker != nil {
		l.tracker.SetCommand(cmd, state, now)
	}
}

func (l *Loop) sampleWindow(ctx context.Context, cycle time.Time) {
	// drain back to back so both channels cover the same window
	counts := make([]uint64, len(l.counters))
	for i, c := range l.counters {
		counts[i] = c.Drain()
	}
	now := l.now(cycle)
	elapsed := now.Sub(l.windowStart)
	l.windowStart = now

	samples := make([]logic.RateSample, len(l.counters))
	for i, c := range l.counters {
		samples[i] = logic.RateSample{
			Channel: c.ID(),
			Rate:    l.cfg.Sampler.Sample(elapsed, counts[i]),
			Count:   counts[i],
			Elapsed: elapsed,
			At:      now,
		}
	}

	l.log.Debug().
		Float64("flow1", samples[0].Rate).
		Float64("flow2", samples[1].Rate).
		Uint64("pulses1", counts[0]).
		Uint64("pulses2", counts[1]).
		Dur("elapsed", elapsed).
		Msg("window")

	for _, s := range samples {
		l.publish(ctx, s)
	}

	for _, s := range samples {
		if err := l.history.Record(ctx, s); err != nil {
			l.log.Debug().Err(err).Str("channel", s.Channel.String()).Msg("history write failed")
		}

		liters := l.cfg.Sampler.Volume(s.Count)
		l.usage.Add(s.Channel, liters)
		if l.metrics != nil {
			l.metrics.ObserveSample(s, liters)
		}
		if l.tracker != nil {
			l.tracker.RecordSample(s, l.usage.Total(s.Channel), l.usage.Cost(s.Channel))
		}
	}

	leak := logic.Leak(samples[0].Rate, samples[1].Rate, l.cfg.LeakTolerance)
	if l.metrics != nil {
		l.metrics.SetLeak(leak)
	}
	if l.tracker != nil {
		l.tracker.RecordWindow(leak)
	}
}

// publish sends one sample. A failed publish is logged and the sample dropped.
func (l *Loop) publish(ctx context.Context, s logic.RateSample) {
	cctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	start := time.Now()
	err := l.store.PublishRate(cctx, s.Channel, s.Rate)
	cancel()

	if l.metrics != nil {
		l.metrics.ObservePublish(s.Channel, time.Since(start), err)
	}
	if l.tracker != nil {
		l.tracker.RecordPublish(err)
	}
	if err != nil {
		l.log.Warn().Err(err).Str("channel", s.Channel.String()).
			Str("rate", fmt.Sprintf("%.2f", s.Rate)).Msg("publish failed, sample dropped")
	}
}

func (l *Loop) refresh() {
	state := l.ctrl.State()
	if l.metrics != nil {
		l.metrics.Cycles.Inc()
		l.metrics.SetActuator(state)
	}
	if l.tracker == nil {
		return
	}

	l.tracker.Cycle(l.counters[0].Pending(), l.counters[1].Pending())

	connected := true
	if cs, ok := l.store.(store.ConnectionStatus); ok {
		connected = cs.IsConnected()
	}
	breaker := ""
	if bs, ok := l.store.(breakerState); ok {
		breaker = bs.State()
	}
	l.tracker.SetStore(connected, breaker)
}
