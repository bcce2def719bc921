package remote

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox/pkg/broker"
	"github.com/LeonardoBeccarini/growbox/pkg/broker/brokertest"
)

func TestMQTTConfig_Topics(t *testing.T) {
	assert.Equal(t, "growbox/command", MQTTConfig{}.CommandTopic())
	assert.Equal(t, "growbox/event", MQTTConfig{}.EventTopic())
	assert.Equal(t, "lab/box1/command", MQTTConfig{TopicPrefix: "/lab/box1/"}.CommandTopic())
}

func TestMQTT_SessionLifecycle(t *testing.T) {
	client := brokertest.NewClient()

	var m *MQTT
	inbound := make(chan string, 4)
	opts := quietOptions()
	opts.OnOpen = func() { m.Send("become-device") }
	opts.OnMessage = func(msg string) { inbound <- msg }
	m = NewMQTT(MQTTConfig{Broker: broker.Config{Host: "localhost", Port: 1883}}, opts)
	m.connect = func(_ context.Context, cfg *broker.Config) (mqtt.Client, error) {
		cfg.OnConnect(client)
		return client, nil
	}
	assert.False(t, m.Connected())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(client.Published()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, brokertest.Published{Topic: "growbox/event", Qos: 1, Payload: "become-device"}, client.Published()[0])
	assert.True(t, m.Connected())

	require.True(t, client.Deliver("growbox/command", "lighting:1\n"))
	assert.Equal(t, "lighting:1", recv(t, inbound))

	cancel()
	assert.NoError(t, recv(t, errc))
	assert.False(t, client.IsConnected(), "disconnected on shutdown")
	assert.False(t, m.Connected())
}
