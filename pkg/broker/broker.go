// Package broker wraps the paho MQTT client: connection with retry, topic
// consumers and publishers.
package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// ClientID defaults to "growbox-<random>".
	ClientID string
	// MaxRetries bounds the initial connection attempts. Defaults to 5.
	MaxRetries int

	// OnConnect runs after every successful (re)connection. Subscriptions
	// belong here since sessions are clean.
	OnConnect        func(mqtt.Client)
	OnConnectionLost func(mqtt.Client, error)
}

// ClientOptions builds the paho options for cfg.
func ClientOptions(cfg *Config) *mqtt.ClientOptions {
	if cfg.ClientID == "" {
		cfg.ClientID = "growbox-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	if cfg.OnConnect != nil {
		opts.SetOnConnectHandler(cfg.OnConnect)
	}
	if cfg.OnConnectionLost != nil {
		opts.SetConnectionLostHandler(cfg.OnConnectionLost)
	}
	return opts
}

// Connect dials the broker, retrying with exponential backoff, and
// disconnects once ctx is cancelled.
func Connect(ctx context.Context, cfg *Config) (mqtt.Client, error) {
	opts := ClientOptions(cfg)
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("broker: connect: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("broker: no connection after retries: %w", err)
	}

	log.Printf("broker: connected to %s:%d as %s", cfg.Host, cfg.Port, cfg.ClientID)

	go func() {
		<-ctx.Done()
		Close(client)
	}()

	return client, nil
}

// Close disconnects client if it is still connected.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Println("broker: disconnected")
	}
}
