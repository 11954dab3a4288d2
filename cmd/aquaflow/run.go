package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yugeshweb/AquaFlow/internal/actuator"
	"github.com/yugeshweb/AquaFlow/internal/config"
	"github.com/yugeshweb/AquaFlow/internal/gpio"
	"github.com/yugeshweb/AquaFlow/internal/history"
	"github.com/yugeshweb/AquaFlow/internal/logger"
	"github.com/yugeshweb/AquaFlow/internal/metrics"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
	"github.com/yugeshweb/AquaFlow/internal/status"
	"github.com/yugeshweb/AquaFlow/internal/store"
	"github.com/yugeshweb/AquaFlow/internal/syncloop"
	"github.com/yugeshweb/AquaFlow/internal/web"
)

const networkRefresh = 5 * time.Minute

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flow controller daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// 'run' is the default if no command is provided
	rootCmd.RunE = runCmd.RunE
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	flow1, err := pulse.NewCounter(pulse.Channel1)
	if err != nil {
		return err
	}
	flow2, err := pulse.NewCounter(pulse.Channel2)
	if err != nil {
		return err
	}

	// Claim the relay first so the pump is forced off as early as possible
	relay, err := gpio.NewRealRelay(cfg.GPIO.Chip, cfg.GPIO.PinRelay)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}

	inputs, err := gpio.NewRealInputs(cfg.GPIO.Chip, cfg.GPIO.Debounce,
		gpio.Input{Pin: cfg.GPIO.PinFlow1, OnEdge: flow1.OnEdge},
		gpio.Input{Pin: cfg.GPIO.PinFlow2, OnEdge: flow2.OnEdge},
	)
	if err != nil {
		relay.Close()
		return fmt.Errorf("init flow inputs: %w", err)
	}
	defer func() {
		if err := inputs.Close(); err != nil {
			log.Error().Err(err).Msg("close flow inputs")
		}
	}()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		relay.Close()
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	rec, err := openHistory(cfg)
	if err != nil {
		relay.Close()
		return fmt.Errorf("init history: %w", err)
	}
	defer rec.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ticker := time.NewTicker(cfg.Loop.Poll)
	defer ticker.Stop()

	return serve(ctx, daemon{
		cfg:      cfg,
		log:      log,
		relay:    relay,
		store:    st,
		history:  rec,
		flow1:    flow1,
		flow2:    flow2,
		registry: reg,
	}, ticker.C, time.Now)
}

// daemon holds the opened resources serve runs on.
type daemon struct {
	cfg      *config.Config
	log      zerolog.Logger
	relay    gpio.Relay
	store    store.Store
	history  history.Recorder
	flow1    *pulse.Counter
	flow2    *pulse.Counter
	registry *prometheus.Registry
}

// serve runs the control loop and the HTTP server until ctx is cancelled.
// It owns the relay: on return the relay is de-energized and released.
func serve(ctx context.Context, d daemon, tick <-chan time.Time, now func() time.Time) error {
	cfg, log := d.cfg, d.log

	ctrl, err := actuator.New(d.relay)
	if err != nil {
		d.relay.Close()
		return fmt.Errorf("init actuator: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Error().Err(err).Msg("release relay")
		} else {
			log.Info().Msg("relay de-energized")
		}
	}()

	tracker := status.NewTracker(now(), statusConfig(cfg))
	if net := readNetworkInfo(networkEnvFile); net != nil {
		tracker.SetNetwork(net)
	}
	go refreshNetwork(ctx, tracker, networkEnvFile, networkRefresh)

	if d.registry == nil {
		d.registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.registry)

	lcfg := syncloop.Config{
		Sampler:       cfg.SamplerConfig(),
		StoreTimeout:  cfg.Store.Timeout,
		LeakTolerance: cfg.Usage.LeakTolerance,
		PricePerLiter: cfg.Usage.PricePerLiter,
	}
	loop, err := syncloop.New(lcfg, d.store, ctrl, d.flow1, d.flow2,
		syncloop.WithHistory(d.history),
		syncloop.WithTracker(tracker),
		syncloop.WithMetrics(m),
		syncloop.WithLogger(logger.Component(log, "syncloop")),
	)
	if err != nil {
		return err
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, d.registry)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Str("backend", cfg.Store.Backend).
		Str("store", cfg.StoreAddr()).
		Dur("poll", cfg.Loop.Poll).
		Dur("window", cfg.Sampler.Window).
		Float64("pulses_per_unit", cfg.Sampler.PulsesPerUnit).
		Bool("correct_drift", cfg.Sampler.CorrectDrift).
		Str("version", version).
		Msg("started")

	err = loop.Run(ctx, tick, now)
	log.Info().Msg("shutting down")
	return err
}

// openStore connects the configured backend and wraps it in a circuit breaker
// unless store.breaker_failures is 0.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	var inner store.Store

	switch cfg.Store.Backend {
	case config.BackendMQTT:
		s, err := store.NewMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.BaseTopic, logger.Component(log, "mqtt"))
		if err != nil {
			return nil, err
		}
		inner = s
	case config.BackendRedis:
		s := store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			store.WithPrefix(cfg.Redis.Prefix),
			store.WithRedisLogger(logger.Component(log, "redis")),
		)
		pctx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		err := s.Ping(pctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet, continuing")
		}
		inner = s
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.BreakerFailures == 0 {
		return inner, nil
	}
	return store.NewBreaker(inner, cfg.Store.Backend, cfg.Store.BreakerFailures, cfg.Store.BreakerOpen, log), nil
}

// openHistory returns the InfluxDB recorder, or a no-op one when influx.url is empty.
func openHistory(cfg *config.Config) (history.Recorder, error) {
	if cfg.Influx.URL == "" {
		return history.Noop{}, nil
	}
	return history.NewInflux(history.InfluxConfig{
		URL:     cfg.Influx.URL,
		Token:   cfg.Influx.Token,
		Org:     cfg.Influx.Org,
		Bucket:  cfg.Influx.Bucket,
		Timeout: cfg.Store.Timeout,
	})
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:        cfg.Loop.Poll.Milliseconds(),
		WindowMs:      cfg.Sampler.Window.Milliseconds(),
		DebounceMs:    cfg.GPIO.Debounce.Milliseconds(),
		PulsesPerUnit: cfg.Sampler.PulsesPerUnit,
		CorrectDrift:  cfg.Sampler.CorrectDrift,
		Backend:       cfg.Store.Backend,
		StoreAddr:     cfg.StoreAddr(),
		HTTPAddr:      cfg.HTTP.Addr,
		History:       cfg.Influx.URL != "",
	}
}
