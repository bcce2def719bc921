package broker

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message received on topic.
type Handler func(topic string, payload []byte) error

// Consumer subscribes a handler to a single topic.
type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
}

// Subscribe registers the handler and waits for the broker to confirm.
func (c *Consumer) Subscribe() error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Printf("broker: no handler set for topic %s", c.topic)
			return
		}
		if err := c.handler(message.Topic(), message.Payload()); err != nil {
			log.Printf("broker: handling message on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("broker: subscribe %s: %w", c.topic, token.Error())
	}
	log.Printf("broker: subscribed to %s", c.topic)
	return nil
}
