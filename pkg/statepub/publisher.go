// Package statepub mirrors delegate value changes to an MQTT broker.
//
// Every change is published, retained, as JSON to
// <prefix>/<accessory id>/<service key>/<key>, with "accessory" in place of
// the service key for accessory properties.
package statepub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesce     = 250 // milliseconds
	maxQoS                = 2
)

// Publisher errors.
var (
	ErrConnectionFailed = errors.New("statepub: connection failed")
	ErrNotConnected     = errors.New("statepub: not connected")
	ErrPublishFailed    = errors.New("statepub: publish failed")
	ErrInvalidQoS       = errors.New("statepub: invalid qos")
)

// Client is the part of the paho client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Config configures a Publisher.
type Config struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Prefix is the topic root. Defaults to "homebridge".
	Prefix string `yaml:"prefix"`
	QoS    byte   `yaml:"qos"`
}

// Message is the payload of a state topic.
type Message struct {
	Value    any       `json:"value"`
	FromHost bool      `json:"fromHost"`
	Time     time.Time `json:"time"`
}

// Publisher publishes delegate changes.
type Publisher struct {
	client Client
	prefix string
	qos    byte
	logger *slog.Logger
	now    func() time.Time
}

// Connect connects to the broker in cfg.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: no broker", ErrConnectionFailed)
	}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "homebridge-lib-go"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return New(client, cfg, logger)
}

// New creates a publisher on a connected client.
func New(client Client, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.QoS > maxQoS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, cfg.QoS)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "homebridge"
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		qos:    cfg.QoS,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Topic returns the state topic of a change.
func (p *Publisher) Topic(c delegate.Change) string {
	scope := c.ServiceKey
	if scope == "" {
		scope = "accessory"
	}
	return strings.Join([]string{p.prefix, c.AccessoryID, scope, c.Key}, "/")
}

// Publish publishes c as a retained message.
func (p *Publisher) Publish(c delegate.Change) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(Message{Value: c.Value, FromHost: c.FromHost, Time: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	token := p.client.Publish(p.Topic(c), p.qos, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Attach publishes every change of the platform and returns a function
// that stops it. Publish errors are logged.
func (p *Publisher) Attach(platform *delegate.Platform) func() {
	return platform.OnChange(func(c delegate.Change) {
		if err := p.Publish(c); err != nil {
			p.logger.Warn("state publish failed", "topic", p.Topic(c), "error", err)
		}
	})
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}

var _ Client = pahomqtt.Client(nil)
