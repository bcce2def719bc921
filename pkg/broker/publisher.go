package broker

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrPublishTimeout = errors.New("broker: publish timed out")

// Publisher sends string payloads to a fixed topic.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{
		client:  client,
		topic:   topic,
		qos:     qos,
		timeout: 5 * time.Second,
	}
}

// PublishMessage publishes message and waits for the broker to accept it.
func (p *Publisher) PublishMessage(message string) error {
	token := p.client.Publish(p.topic, p.qos, false, message)
	if !token.WaitTimeout(p.timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: publish %s: %w", p.topic, err)
	}
	return nil
}
