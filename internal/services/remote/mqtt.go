package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/growbox/pkg/broker"
)

const (
	brokerTag          = "BROKER"
	DefaultTopicPrefix = "growbox"
)

type MQTTConfig struct {
	Broker broker.Config
	// TopicPrefix roots the command (<prefix>/command) and event
	// (<prefix>/event) topics.
	TopicPrefix string
	QueueSize   int
}

// CommandTopic carries frames from the remote peer to the controller.
func (c MQTTConfig) CommandTopic() string { return c.prefix() + "/command" }

// EventTopic carries frames from the controller to the remote peer.
func (c MQTTConfig) EventTopic() string { return c.prefix() + "/event" }

func (c MQTTConfig) prefix() string {
	p := strings.Trim(c.TopicPrefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// MQTT exchanges remote frames through a broker instead of a direct
// socket. Each (re)connection counts as a new session.
type MQTT struct {
	cfg     MQTTConfig
	opts    Options
	out     *outbox
	connect func(context.Context, *broker.Config) (mqtt.Client, error)

	mu        sync.RWMutex
	client    mqtt.Client
	publisher *broker.Publisher
}

func NewMQTT(cfg MQTTConfig, opts Options) *MQTT {
	opts.defaults()
	return &MQTT{
		cfg:     cfg,
		opts:    opts,
		out:     newOutbox(brokerTag, cfg.QueueSize, opts),
		connect: broker.Connect,
	}
}

// Connected reports whether the broker connection is up.
func (m *MQTT) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil && m.client.IsConnectionOpen()
}

// Send queues msg for the event topic. It never blocks.
func (m *MQTT) Send(msg string) {
	m.out.push(msg, m.Connected())
}

// Run connects to the broker and publishes queued frames until ctx is
// cancelled. Reconnection is left to the paho client.
func (m *MQTT) Run(ctx context.Context) error {
	cfg := m.cfg.Broker
	cfg.OnConnect = m.onConnect
	cfg.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.opts.Logger.Printf("remote: broker connection lost: %v", err)
	}

	client, err := m.connect(ctx, &cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("remote: %w", err)
	}
	defer broker.Close(client)

	m.out.drain(ctx, func(_ context.Context, msg string) error {
		m.mu.RLock()
		p := m.publisher
		m.mu.RUnlock()
		if p == nil {
			return fmt.Errorf("remote: no publisher")
		}
		return p.PublishMessage(msg)
	})
	return nil
}

// onConnect subscribes to the command topic and announces the session.
func (m *MQTT) onConnect(client mqtt.Client) {
	consumer := broker.NewConsumer(client, m.cfg.CommandTopic(), 1, m.handle)
	if err := consumer.Subscribe(); err != nil {
		m.opts.Logger.Printf("remote: %v", err)
		return
	}

	m.mu.Lock()
	m.client = client
	m.publisher = broker.NewPublisher(client, m.cfg.EventTopic(), 1)
	m.mu.Unlock()

	m.opts.Logger.Printf("remote: listening on %s, publishing to %s", m.cfg.CommandTopic(), m.cfg.EventTopic())
	m.opts.OnOpen()
}

func (m *MQTT) handle(_ string, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	m.opts.Logger.Printf("%s < %s", brokerTag, msg)
	m.opts.OnMessage(msg)
	return nil
}
