package store

import (
	"context"
	"errors"
	"sync/atomic"

	backend "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// DefaultRedisPrefix namespaces the command and rate keys.
const DefaultRedisPrefix = "aquaflow:"

// Redis implements Store with plain string keys:
// GET <prefix>pump, SET <prefix>flow1, SET <prefix>flow2.
type Redis struct {
	client    *backend.Client
	prefix    string
	log       zerolog.Logger
	connected atomic.Bool
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) {
		s.prefix = prefix
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(log zerolog.Logger) RedisOption {
	return func(s *Redis) {
		s.log = log
	}
}

// NewRedis creates a Redis store. No connection is made until the first call.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(rdb, opts...)
}

// NewRedisFromClient creates a Redis store from an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	s := &Redis{
		client: client,
		prefix: DefaultRedisPrefix,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) key(name string) string {
	return s.prefix + name
}

// Ping checks connectivity.
func (s *Redis) Ping(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	s.connected.Store(err == nil)
	if err != nil {
		return transient("ping", err)
	}
	return nil
}

// FetchCommand reads the pump command key.
func (s *Redis) FetchCommand(ctx context.Context) (logic.Command, error) {
	val, err := s.client.Get(ctx, s.key(CommandKey)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			s.connected.Store(true)
			return logic.CommandUnknown, transient("fetch command", ErrNoCommand)
		}
		s.connected.Store(false)
		return logic.CommandUnknown, transient("fetch command", err)
	}
	s.connected.Store(true)

	s.log.Debug().Str("key", s.key(CommandKey)).Str("value", val).Msg("command read")
	return logic.ParseCommand(val), nil
}

// PublishRate writes the rate for a channel.
func (s *Redis) PublishRate(ctx context.Context, channel pulse.Channel, rate float64) error {
	if err := s.client.Set(ctx, s.key(RateKey(channel)), FormatRate(rate), 0).Err(); err != nil {
		s.connected.Store(false)
		return transient("publish "+channel.String(), err)
	}
	s.connected.Store(true)
	return nil
}

// IsConnected reports whether the last round trip succeeded.
func (s *Redis) IsConnected() bool {
	return s.connected.Load()
}

// Close closes the redis client.
func (s *Redis) Close() error {
	return s.client.Close()
}
