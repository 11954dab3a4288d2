// Package config loads the daemon configuration from defaults, an optional
// YAML file, AQUAFLOW_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yugeshweb/AquaFlow/internal/gpio"
	"github.com/yugeshweb/AquaFlow/internal/logger"
	"github.com/yugeshweb/AquaFlow/internal/logic"
)

// EnvPrefix prefixes every environment variable, e.g. AQUAFLOW_REDIS_ADDR.
const EnvPrefix = "AQUAFLOW"

// Store backends.
const (
	BackendRedis = "redis"
	BackendMQTT  = "mqtt"
)

type Config struct {
	GPIO    GPIO    `mapstructure:"gpio"`
	Sampler Sampler `mapstructure:"sampler"`
	Loop    Loop    `mapstructure:"loop"`
	Store   Store   `mapstructure:"store"`
	Redis   Redis   `mapstructure:"redis"`
	MQTT    MQTT    `mapstructure:"mqtt"`
	Influx  Influx  `mapstructure:"influx"`
	HTTP    HTTP    `mapstructure:"http"`
	Log     Log     `mapstructure:"log"`
	Usage   Usage   `mapstructure:"usage"`
}

type GPIO struct {
	Chip     string        `mapstructure:"chip"`
	PinFlow1 int           `mapstructure:"pin_flow1"`
	PinFlow2 int           `mapstructure:"pin_flow2"`
	PinRelay int           `mapstructure:"pin_relay"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type Sampler struct {
	PulsesPerUnit float64       `mapstructure:"pulses_per_unit"`
	Window        time.Duration `mapstructure:"window"`
	CorrectDrift  bool          `mapstructure:"correct_drift"`
}

type Loop struct {
	Poll time.Duration `mapstructure:"poll"`
}

type Store struct {
	Backend         string        `mapstructure:"backend"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpen     time.Duration `mapstructure:"breaker_open"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MQTT struct {
	Broker    string `mapstructure:"broker"`
	ClientID  string `mapstructure:"client_id"`
	BaseTopic string `mapstructure:"base_topic"`
}

// Influx enables the history sink when URL is set.
type Influx struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type Usage struct {
	LeakTolerance float64 `mapstructure:"leak_tolerance"`
	PricePerLiter float64 `mapstructure:"price_per_liter"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.pin_flow1", gpio.DefaultPinFlow1)
	v.SetDefault("gpio.pin_flow2", gpio.DefaultPinFlow2)
	v.SetDefault("gpio.pin_relay", gpio.DefaultPinRelay)
	v.SetDefault("gpio.debounce", time.Duration(0))

	v.SetDefault("sampler.pulses_per_unit", logic.DefaultPulsesPerUnit)
	v.SetDefault("sampler.window", logic.DefaultWindow)
	v.SetDefault("sampler.correct_drift", true)

	v.SetDefault("loop.poll", 100*time.Millisecond)

	v.SetDefault("store.backend", BackendRedis)
	v.SetDefault("store.timeout", 2*time.Second)
	v.SetDefault("store.breaker_failures", 5)
	v.SetDefault("store.breaker_open", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "aquaflow:")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "aquaflow")
	v.SetDefault("mqtt.base_topic", "aquaflow")

	v.SetDefault("influx.url", "")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "")

	v.SetDefault("http.addr", ":80")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("usage.leak_tolerance", logic.DefaultLeakTolerance)
	v.SetDefault("usage.price_per_liter", logic.DefaultPricePerLiter)
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"chip":            "gpio.chip",
	"pin-flow1":       "gpio.pin_flow1",
	"pin-flow2":       "gpio.pin_flow2",
	"pin-relay":       "gpio.pin_relay",
	"debounce":        "gpio.debounce",
	"pulses-per-unit": "sampler.pulses_per_unit",
	"window":          "sampler.window",
	"correct-drift":   "sampler.correct_drift",
	"poll":            "loop.poll",
	"backend":         "store.backend",
	"store-timeout":   "store.timeout",
	"redis":           "redis.addr",
	"broker":          "mqtt.broker",
	"influx":          "influx.url",
	"http":            "http.addr",
	"log-level":       "log.level",
}

// RegisterFlags adds the command line flags to fs. Flags only override the
// other sources when set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (YAML)")
	fs.String("chip", gpio.DefaultChip, "GPIO chip")
	fs.Int("pin-flow1", gpio.DefaultPinFlow1, "line offset of flow sensor 1")
	fs.Int("pin-flow2", gpio.DefaultPinFlow2, "line offset of flow sensor 2")
	fs.Int("pin-relay", gpio.DefaultPinRelay, "line offset of the pump relay")
	fs.Duration("debounce", 0, "input debounce period (0 disables)")
	fs.Float64("pulses-per-unit", logic.DefaultPulsesPerUnit, "sensor pulses per second per L/min")
	fs.Duration("window", logic.DefaultWindow, "rate sampling window")
	fs.Bool("correct-drift", true, "scale rates by the measured window length")
	fs.Duration("poll", 100*time.Millisecond, "control loop interval")
	fs.String("backend", BackendRedis, "remote store backend: redis or mqtt")
	fs.Duration("store-timeout", 2*time.Second, "timeout of each store call")
	fs.String("redis", "localhost:6379", "redis address")
	fs.String("broker", "tcp://localhost:1883", "MQTT broker address")
	fs.String("influx", "", "InfluxDB URL for sample history (empty disables)")
	fs.String("http", ":80", "HTTP status address (empty disables)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
}

// Load reads the configuration. fs may be nil.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := ""
	if fs != nil {
		file, _ = fs.GetString("config")
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("aquaflow")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/aquaflow")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	pins := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"gpio.pin_flow1", c.GPIO.PinFlow1},
		{"gpio.pin_flow2", c.GPIO.PinFlow2},
		{"gpio.pin_relay", c.GPIO.PinRelay},
	} {
		if p.pin < 0 {
			add("%s: must not be negative", p.name)
			continue
		}
		if other, ok := pins[p.pin]; ok {
			add("%s: line %d already used by %s", p.name, p.pin, other)
		}
		pins[p.pin] = p.name
	}
	if c.GPIO.Debounce < 0 {
		add("gpio.debounce: must not be negative")
	}

	if c.Sampler.PulsesPerUnit <= 0 {
		add("sampler.pulses_per_unit: must be positive")
	}
	if c.Sampler.Window <= 0 {
		add("sampler.window: must be positive")
	}
	if c.Loop.Poll <= 0 {
		add("loop.poll: must be positive")
	} else if c.Sampler.Window > 0 && c.Loop.Poll > c.Sampler.Window {
		add("loop.poll: %v is longer than sampler.window %v", c.Loop.Poll, c.Sampler.Window)
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			add("redis.addr: required for the redis backend")
		}
	case BackendMQTT:
		if c.MQTT.Broker == "" {
			add("mqtt.broker: required for the mqtt backend")
		}
		if c.MQTT.BaseTopic == "" {
			add("mqtt.base_topic: required for the mqtt backend")
		}
	default:
		add("store.backend: %q is not redis or mqtt", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		add("store.timeout: must be positive")
	}

	if c.Influx.URL != "" && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		add("influx: org and bucket are required when url is set")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}

	if c.Usage.LeakTolerance < 0 {
		add("usage.leak_tolerance: must not be negative")
	}
	if c.Usage.PricePerLiter < 0 {
		add("usage.price_per_liter: must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SamplerConfig returns the rate sampler settings.
func (c *Config) SamplerConfig() logic.Sampler {
	return logic.Sampler{
		PulsesPerUnit: c.Sampler.PulsesPerUnit,
		Window:        c.Sampler.Window,
		CorrectDrift:  c.Sampler.CorrectDrift,
	}
}

// StoreAddr returns the address of the configured backend.
func (c *Config) StoreAddr() string {
	if c.Store.Backend == BackendMQTT {
		return c.MQTT.Broker
	}
	return c.Redis.Addr
}
