package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/yugeshweb/AquaFlow/internal/logic"
	"github.com/yugeshweb/AquaFlow/internal/pulse"
)

// DefaultBaseTopic prefixes every topic the MQTT store uses.
const DefaultBaseTopic = "aquaflow"

const (
	statusTopic   = "status"
	statusOnline  = "online"
	statusOffline = "offline"
)

// MQTT implements Store on an MQTT broker. The command is a retained
// message on <base>/pump that the store subscribes to and caches; rates are
// published retained on <base>/flow1 and <base>/flow2.
type MQTT struct {
	client paho.Client
	base   string
	log    zerolog.Logger

	mu       sync.Mutex
	command  string
	received bool
}

// NewMQTT connects to the broker. If the broker is not reachable within the
// connect timeout the store is still returned: paho keeps retrying in the
// background and calls fail as transient errors until it connects.
func NewMQTT(broker, clientID, base string, log zerolog.Logger) (*MQTT, error) {
	s := &MQTT{base: base, log: log}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(s.topic(statusTopic), statusOffline, 1, true).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt connect timeout, retrying in background")
		return s, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return s, nil
}

// newMQTTFromClient wraps an existing client without connecting.
func newMQTTFromClient(client paho.Client, base string, log zerolog.Logger) *MQTT {
	return &MQTT{client: client, base: base, log: log}
}

func (s *MQTT) topic(name string) string {
	return s.base + "/" + name
}

// onConnect runs on every (re)connect: subscriptions do not survive a clean
// session, and the retained command is redelivered on subscribe.
func (s *MQTT) onConnect(c paho.Client) {
	s.log.Info().Msg("mqtt connected")

	if t := c.Subscribe(s.topic(CommandKey), 1, s.handleCommand); t.WaitTimeout(5*time.Second) && t.Error() != nil {
		s.log.Error().Err(t.Error()).Str("topic", s.topic(CommandKey)).Msg("subscribe failed")
	}
	c.Publish(s.topic(statusTopic), 1, true, statusOnline)
}

func (s *MQTT) handleCommand(_ paho.Client, msg paho.Message) {
	s.mu.Lock()
	s.command = string(msg.Payload())
	s.received = true
	s.mu.Unlock()

	s.log.Debug().Str("topic", msg.Topic()).Bytes("payload", msg.Payload()).Msg("command received")
}

// FetchCommand returns the latest command received on the command topic.
// It fails while disconnected so a stale command is never reported as current.
func (s *MQTT) FetchCommand(ctx context.Context) (logic.Command, error) {
	if !s.client.IsConnectionOpen() {
		return logic.CommandUnknown, transient("fetch command", ErrNotConnected)
	}

	s.mu.Lock()
	raw, ok := s.command, s.received
	s.mu.Unlock()

	if !ok {
		return logic.CommandUnknown, transient("fetch command", ErrNoCommand)
	}
	return logic.ParseCommand(raw), nil
}

// PublishRate publishes the rate for a channel as a retained message.
func (s *MQTT) PublishRate(ctx context.Context, channel pulse.Channel, rate float64) error {
	// QoS 0 (at-most-once), retained so late subscribers see the last rate
	token := s.client.Publish(s.topic(RateKey(channel)), 0, true, FormatRate(rate))
	if err := waitToken(ctx, token); err != nil {
		return transient("publish "+channel.String(), err)
	}
	return nil
}

// IsConnected reports whether the MQTT connection is up.
func (s *MQTT) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Close marks the device offline and disconnects from the broker.
func (s *MQTT) Close() error {
	if s.client.IsConnectionOpen() {
		t := s.client.Publish(s.topic(statusTopic), 1, true, statusOffline)
		t.WaitTimeout(time.Second)
	}
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
