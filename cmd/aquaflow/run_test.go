package main

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugeshweb/AquaFlow/internal/config"
	"github.com/yugeshweb/AquaFlow/internal/gpio"
	"github.com/yugeshweb/AquaFlow/internal/history"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
	"github.com/yugeshweb/AquaFlow/internal/store"
)

func testConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New(), nil)
	require.NoError(t, err)
	cfg.Redis.Addr = redisAddr
	cfg.HTTP.Addr = ""
	return cfg
}

// manualClock is advanced by the test and read by the loop goroutine.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counters(t *testing.T) (*pulse.Counter, *pulse.Counter) {
	t.Helper()
	flow1, err := pulse.NewCounter(pulse.Channel1)
	require.NoError(t, err)
	flow2, err := pulse.NewCounter(pulse.Channel2)
	require.NoError(t, err)
	return flow1, flow2
}

func TestServeEndToEndWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("aquaflow:pump", "ON"))

	cfg := testConfig(t, mr.Addr())
	st, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	relay := gpio.NewFakeRelay()
	flow1, flow2 := counters(t)
	inputs := gpio.NewFakeInputs(
		gpio.Input{Pin: cfg.GPIO.PinFlow1, OnEdge: flow1.OnEdge},
		gpio.Input{Pin: cfg.GPIO.PinFlow2, OnEdge: flow2.OnEdge},
	)
	reg := prometheus.NewRegistry()

	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())

	var logs bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, daemon{
			cfg:      cfg,
			log:      zerolog.New(&logs),
			relay:    relay,
			store:    st,
			history:  history.Noop{},
			flow1:    flow1,
			flow2:    flow2,
			registry: reg,
		}, tick, clock.Now)
	}()

	// first cycle: command applied, no window yet
	tick <- time.Time{}
	require.NoError(t, inputs.Pulse(cfg.GPIO.PinFlow1, 15))
	require.NoError(t, inputs.Pulse(cfg.GPIO.PinFlow2, 30))

	clock.Advance(time.Second)
	tick <- time.Time{}

	// operator switches the pump off
	require.NoError(t, mr.Set("aquaflow:pump", "OFF"))
	clock.Advance(100 * time.Millisecond)
	tick <- time.Time{}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	flowRate, err := mr.Get("aquaflow:flow1")
	require.NoError(t, err)
	assert.Equal(t, "2.00", flowRate)
	flowRate, err = mr.Get("aquaflow:flow2")
	require.NoError(t, err)
	assert.Equal(t, "4.00", flowRate)

	// startup safe state, ON twice, then OFF
	assert.Equal(t, []bool{false, true, true, false}, relay.Writes)
	assert.True(t, relay.Closed, "relay released on shutdown")
	assert.False(t, relay.Energized())

	assert.Equal(t, 3.0, counterValue(t, reg, "aquaflow_cycles_total"))
	assert.Contains(t, logs.String(), "started")
	assert.Contains(t, logs.String(), "shutting down")
}

// counterValue gathers a single unlabelled counter from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestServeStoreDownKeepsRunning(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())
	cfg.Store.Timeout = 200 * time.Millisecond
	mr.Close()

	st, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err, "an unreachable redis is not fatal at startup")
	defer st.Close()

	relay := gpio.NewFakeRelay()
	flow1, flow2 := counters(t)
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, daemon{
			cfg: cfg, log: zerolog.Nop(), relay: relay, store: st,
			history: history.Noop{}, flow1: flow1, flow2: flow2,
		}, tick, clock.Now)
	}()

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		tick <- time.Time{}
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []bool{false}, relay.Writes, "relay stays in the safe state")
}

func TestServeFailsWhenRelayUnwritable(t *testing.T) {
	cfg := testConfig(t, "localhost:0")
	relay := gpio.NewFakeRelay()
	relay.FailWith(assert.AnError)
	flow1, flow2 := counters(t)

	err := serve(context.Background(), daemon{
		cfg: cfg, log: zerolog.Nop(), relay: relay, store: store.NewFakeStore(),
		history: history.Noop{}, flow1: flow1, flow2: flow2,
	}, nil, time.Now)
	assert.Error(t, err)
	assert.True(t, relay.Closed)
}

func TestOpenStoreBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())

	st, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &store.Breaker{}, st)

	cfg.Store.BreakerFailures = 0
	plain, err := openStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer plain.Close()
	assert.IsType(t, &store.Redis{}, plain)

	cfg.Store.Backend = "carrier-pigeon"
	_, err = openStore(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenHistory(t *testing.T) {
	cfg := testConfig(t, "localhost:6379")

	rec, err := openHistory(cfg)
	require.NoError(t, err)
	assert.IsType(t, history.Noop{}, rec)

	cfg.Influx.URL = "http://localhost:8086"
	cfg.Influx.Org = "home"
	cfg.Influx.Bucket = "water"
	rec, err = openHistory(cfg)
	require.NoError(t, err)
	defer rec.Close()
	assert.IsType(t, &history.Influx{}, rec)
}

func TestStatusConfig(t *testing.T) {
	cfg := testConfig(t, "10.0.0.5:6379")
	sc := statusConfig(cfg)

	assert.Equal(t, int64(100), sc.PollMs)
	assert.Equal(t, int64(1000), sc.WindowMs)
	assert.Equal(t, 7.5, sc.PulsesPerUnit)
	assert.Equal(t, "redis", sc.Backend)
	assert.Equal(t, "10.0.0.5:6379", sc.StoreAddr)
	assert.False(t, sc.History)
}

func TestFormatLevels(t *testing.T) {
	assert.Equal(t, "flow1: HIGH, flow2: LOW", formatLevels([]int{1, 0}))
	assert.Equal(t, "flow1: LOW", formatLevels([]int{0}))
	assert.Equal(t, "", formatLevels(nil))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "aquaflow version dev\n", out.String())
}
