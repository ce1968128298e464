package mqttbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
)

const defaultPublishTimeout = 10 * time.Second

// Client is the part of the paho client the bus needs.
type Client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Config struct {
	BrokerURL      string        `koanf:"broker_url" mapstructure:"broker_url"`
	ClientID       string        `koanf:"client_id" mapstructure:"client_id"`
	Username       string        `koanf:"username" mapstructure:"username"`
	Password       string        `koanf:"password" mapstructure:"password"`
	TopicPrefix    string        `koanf:"topic_prefix" mapstructure:"topic_prefix"`
	PublishTimeout time.Duration `koanf:"publish_timeout" mapstructure:"publish_timeout"`
}

// Bus publishes notification payloads as MQTT messages. Each channel maps to
// one topic; messages are never retained.
type Bus struct {
	client         Client
	topicPrefix    string
	publishTimeout time.Duration
	logger         core.Logger
}

type Option func(*Bus)

func WithLogger(logger core.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithTopicPrefix(prefix string) Option {
	return func(b *Bus) {
		b.topicPrefix = strings.Trim(strings.TrimSpace(prefix), "/")
	}
}

func WithPublishTimeout(timeout time.Duration) Option {
	return func(b *Bus) {
		if timeout > 0 {
			b.publishTimeout = timeout
		}
	}
}

func New(client Client, opts ...Option) (*Bus, error) {
	if client == nil {
		return nil, fmt.Errorf("mqttbus: client is required")
	}
	bus := &Bus{
		client:         client,
		publishTimeout: defaultPublishTimeout,
		logger:         glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(bus)
		}
	}
	return bus, nil
}

// Dial connects a paho client for cfg and wraps it in a Bus.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Bus, error) {
	broker := strings.TrimSpace(cfg.BrokerURL)
	if broker == "" {
		return nil, fmt.Errorf("mqttbus: broker url is required")
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = "noticast"
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		clientOpts.SetUsername(cfg.Username)
		clientOpts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(clientOpts)
	if err := waitToken(ctx, client.Connect(), timeout); err != nil {
		return nil, publishError(err, "mqttbus: connect to broker", map[string]any{"broker": broker})
	}

	opts = append([]Option{WithTopicPrefix(cfg.TopicPrefix), WithPublishTimeout(timeout)}, opts...)
	return New(client, opts...)
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte, qos core.QoS) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("mqttbus: bus is not configured")
	}
	topic, err := b.Topic(channel)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	token := b.client.Publish(topic, byte(qos), false, payload)
	if err := waitToken(ctx, token, b.publishTimeout); err != nil {
		return publishError(err, "mqttbus: publish", map[string]any{"topic": topic, "qos": int(qos)})
	}
	b.logger.Debug("mqtt message published", "topic", topic, "qos", int(qos), "bytes", len(payload))
	return nil
}

// Topic maps a channel name to its MQTT topic.
func (b *Bus) Topic(channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", fmt.Errorf("mqttbus: channel is required")
	}
	if strings.ContainsAny(channel, "+#") {
		return "", fmt.Errorf("mqttbus: channel %q contains wildcard characters", channel)
	}
	if b.topicPrefix == "" {
		return channel, nil
	}
	return b.topicPrefix + "/" + channel, nil
}

func (b *Bus) Close() {
	if b == nil || b.client == nil {
		return
	}
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	if token == nil {
		return fmt.Errorf("mqttbus: missing token")
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqttbus: timed out after %s", timeout)
	}
}

func publishError(source error, message string, metadata map[string]any) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(502).
		WithTextCode(core.ErrorExternalFailure).
		WithMetadata(metadata)
}

var _ core.NotificationBus = (*Bus)(nil)
