package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.Equal(t, 18, cfg.GPIO.PinFlow1)
	assert.Equal(t, 19, cfg.GPIO.PinFlow2)
	assert.Equal(t, 23, cfg.GPIO.PinRelay)
	assert.Equal(t, 7.5, cfg.Sampler.PulsesPerUnit)
	assert.Equal(t, time.Second, cfg.Sampler.Window)
	assert.True(t, cfg.Sampler.CorrectDrift)
	assert.Equal(t, 100*time.Millisecond, cfg.Loop.Poll)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, uint32(5), cfg.Store.BreakerFailures)
	assert.Equal(t, "aquaflow:", cfg.Redis.Prefix)
	assert.Equal(t, "aquaflow", cfg.MQTT.BaseTopic)
	assert.Empty(t, cfg.Influx.URL)
	assert.Equal(t, 0.05, cfg.Usage.LeakTolerance)
	assert.Equal(t, 0.3, cfg.Usage.PricePerLiter)
	assert.Equal(t, "localhost:6379", cfg.StoreAddr())

	s := cfg.SamplerConfig()
	assert.Equal(t, 7.5, s.PulsesPerUnit)
	assert.True(t, s.CorrectDrift)
}

func TestLoadWithoutFlags(t *testing.T) {
	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 18, cfg.GPIO.PinFlow1)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("AQUAFLOW_GPIO_PIN_FLOW1", "5")
	t.Setenv("AQUAFLOW_SAMPLER_WINDOW", "2s")
	t.Setenv("AQUAFLOW_SAMPLER_CORRECT_DRIFT", "false")
	t.Setenv("AQUAFLOW_STORE_BACKEND", "mqtt")
	t.Setenv("AQUAFLOW_MQTT_BROKER", "tcp://10.0.0.2:1883")

	cfg, err := Load(viper.New(), newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.GPIO.PinFlow1)
	assert.Equal(t, 2*time.Second, cfg.Sampler.Window)
	assert.False(t, cfg.Sampler.CorrectDrift)
	assert.Equal(t, BackendMQTT, cfg.Store.Backend)
	assert.Equal(t, "tcp://10.0.0.2:1883", cfg.StoreAddr())
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("AQUAFLOW_GPIO_PIN_FLOW1", "5")

	cfg, err := Load(viper.New(), newFlags(t, "--pin-flow1=6", "--poll=50ms", "--pulses-per-unit=11"))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.GPIO.PinFlow1)
	assert.Equal(t, 50*time.Millisecond, cfg.Loop.Poll)
	assert.Equal(t, 11.0, cfg.Sampler.PulsesPerUnit)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aquaflow.yaml")
	data := []byte(`
gpio:
  pin_relay: 24
  debounce: 2ms
store:
  backend: redis
  breaker_failures: 3
redis:
  addr: 192.168.1.200:6379
  prefix: "farm:"
influx:
  url: http://localhost:8086
  org: home
  bucket: water
usage:
  price_per_liter: 0.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(viper.New(), newFlags(t, "--config", path, "--http="))
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.GPIO.PinRelay)
	assert.Equal(t, 2*time.Millisecond, cfg.GPIO.Debounce)
	assert.Equal(t, uint32(3), cfg.Store.BreakerFailures)
	assert.Equal(t, "192.168.1.200:6379", cfg.Redis.Addr)
	assert.Equal(t, "farm:", cfg.Redis.Prefix)
	assert.Equal(t, "water", cfg.Influx.Bucket)
	assert.Equal(t, 0.5, cfg.Usage.PricePerLiter)
	assert.Empty(t, cfg.HTTP.Addr, "an explicit empty flag disables HTTP")
	// untouched keys keep their defaults
	assert.Equal(t, 18, cfg.GPIO.PinFlow1)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(viper.New(), newFlags(t, "--backend=kafka"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"duplicate pins", func(c *Config) { c.GPIO.PinFlow2 = c.GPIO.PinFlow1 }, "already used"},
		{"negative pin", func(c *Config) { c.GPIO.PinRelay = -1 }, "gpio.pin_relay"},
		{"zero calibration", func(c *Config) { c.Sampler.PulsesPerUnit = 0 }, "sampler.pulses_per_unit"},
		{"zero window", func(c *Config) { c.Sampler.Window = 0 }, "sampler.window"},
		{"poll longer than window", func(c *Config) { c.Loop.Poll = 2 * time.Second }, "loop.poll"},
		{"zero poll", func(c *Config) { c.Loop.Poll = 0 }, "loop.poll"},
		{"mqtt without broker", func(c *Config) { c.Store.Backend = BackendMQTT; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"redis without addr", func(c *Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }, "store.timeout"},
		{"influx without bucket", func(c *Config) { c.Influx.URL = "http://x"; c.Influx.Org = "o" }, "influx"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative price", func(c *Config) { c.Usage.PricePerLiter = -1 }, "usage.price_per_liter"},
		{"negative tolerance", func(c *Config) { c.Usage.LeakTolerance = -0.1 }, "usage.leak_tolerance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig(t)
	cfg.Sampler.PulsesPerUnit = 0
	cfg.Store.Backend = "none"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampler.pulses_per_unit")
	assert.Contains(t, err.Error(), "store.backend")
}
