package controller

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox/internal/config"
)

func TestRunner_SerialisesEvents(t *testing.T) {
	device, remote := &recorder{}, &recorder{}
	e := New(config.Default(), device, remote, Options{
		CoarseInterval: 5 * time.Millisecond,
		FastInterval:   time.Millisecond,
		Logger:         log.New(io.Discard, "", 0),
	})
	r := NewRunner(e)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	r.RemoteOpened()
	r.DeviceOpened()
	r.DeviceMessage("light-level:600")
	r.RemoteMessage("irrigation:0")

	assert.Eventually(t, func() bool { return remote.has("become-device") }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return device.has("reset") }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return remote.has("light-level:600") }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return remote.has("state.irrigation:0") }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return device.has("ping") }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	done := make(chan struct{})
	go func() {
		r.RemoteMessage("get-config")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post blocked after the runner stopped")
	}
}

func TestRunner_PollsLightLevelOnlyAfterDeviceOpens(t *testing.T) {
	cfg := config.Default()
	cfg.AcquisitionInterval = 5
	device, remote := &recorder{}, &recorder{}
	e := New(cfg, device, remote, Options{Logger: log.New(io.Discard, "", 0)})
	r := NewRunner(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, device.count("get-light-level"), "no polling while the port is closed")

	r.DeviceOpened()
	assert.Eventually(t, func() bool { return device.count("get-light-level") >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
}
