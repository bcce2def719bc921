package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/model"
)

func TestHandleDevice_LightLevelPassThrough(t *testing.T) {
	h := newHarness(config.Default())

	h.e.HandleDevice("light-level:600")

	assert.Equal(t, []string{"light-level:600"}, h.remote.take())
	assert.Empty(t, h.device.take())
	assert.Equal(t, 600, h.e.Status().LightLevel)
}

func TestHandleDevice_LightLevelClamped(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "light-level:5000", want: 1023},
		{in: "light-level:-4", want: 0},
		{in: "light-level:1023", want: 1023},
		{in: "light-level:12.7", want: 12},
		{in: "light-level:99999999999999999999", want: 1023},
		{in: "light-level:-99999999999999999999", want: 0},
		{in: "light-level:1e30", want: 1023},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h := newHarness(config.Default())
			h.e.HandleDevice(tt.in)
			assert.Equal(t, tt.want, h.e.Status().LightLevel)
		})
	}
}

func TestHandleDevice_LightLevelNaNIgnored(t *testing.T) {
	h := newHarness(config.Default())
	h.e.HandleDevice("light-level:600")
	h.drain()

	h.e.HandleDevice("light-level:NaN")

	assert.Equal(t, 600, h.e.Status().LightLevel)
	assert.Empty(t, h.remote.take())
}

func TestHandleDevice_IgnoresRemoteCommands(t *testing.T) {
	h := newHarness(config.Default())

	h.e.HandleDevice("irrigation:1")
	h.e.HandleDevice("get-config")

	assert.Equal(t, model.DefaultModes(), h.e.Modes())
	assert.Empty(t, h.remote.take())
	assert.Empty(t, h.device.take())
}

func TestHandleRemote_GetMode(t *testing.T) {
	h := newHarness(config.Default())
	h.e.HandleRemote("irrigation:0")
	h.e.HandleRemote("lighting:1")
	h.drain()

	h.e.HandleRemote("get-irrigation")
	h.e.HandleRemote("get-lighting")
	h.e.HandleRemote("get-oxygen")

	assert.Equal(t, []string{"irrigation:0", "lighting:1", "oxygen:2"}, h.remote.take())
}

func TestHandleRemote_GetLightLevelRepliesWithOxygenMode(t *testing.T) {
	h := newHarness(config.Default())
	h.e.HandleDevice("light-level:600")
	h.drain()

	h.e.HandleRemote("get-light-level")

	assert.Equal(t, []string{"oxygen:2"}, h.remote.take())
}

func TestHandleRemote_IgnoresInvalidInput(t *testing.T) {
	for _, in := range []string{
		"",
		"foo",
		"foo:1",
		"irrigation",
		"irrigation:",
		"irrigation:abc",
		"irrigation:7",
		"lighting:-1",
		"lighting:NaN",
		"lighting-threshold",
		"irrigation-interval:x",
		"light-level:600",
	} {
		t.Run(in, func(t *testing.T) {
			h := newHarness(config.Default())

			h.e.HandleRemote(in)

			assert.Equal(t, model.DefaultModes(), h.e.Modes())
			assert.Equal(t, config.Default(), h.e.Config())
			assert.Empty(t, h.remote.take())
			assert.Empty(t, h.device.take())
		})
	}
}

func lastConfig(t *testing.T, msgs []string) config.Config {
	t.Helper()
	require.NotEmpty(t, msgs)
	raw, ok := strings.CutPrefix(msgs[len(msgs)-1], "config:")
	require.True(t, ok)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	return cfg
}

func TestHandleRemote_ConfigSettersClampAndEcho(t *testing.T) {
	h := newHarness(config.Default())

	h.e.HandleRemote("lighting-threshold:150")
	assert.Equal(t, 100, lastConfig(t, h.remote.take()).Lighting.Threshold)

	h.e.HandleRemote("lighting-threshold:-5")
	assert.Equal(t, 0, lastConfig(t, h.remote.take()).Lighting.Threshold)

	h.e.HandleRemote("lighting-threshold:99999999999999999999")
	assert.Equal(t, 100, lastConfig(t, h.remote.take()).Lighting.Threshold)

	h.e.HandleRemote("irrigation-interval:-1")
	assert.Equal(t, 0, lastConfig(t, h.remote.take()).Irrigation.Interval)

	h.e.HandleRemote("irrigation-duration:30000")
	got := lastConfig(t, h.remote.take())
	assert.Equal(t, 30000, got.Irrigation.Duration)
	assert.Equal(t, 5000, got.Irrigation.PreOxygenateLength)

	assert.Equal(t, 30000, h.e.Config().Irrigation.Duration)
	assert.Empty(t, h.device.take())
}

func TestHandleRemote_ConfigSnapshotKeys(t *testing.T) {
	h := newHarness(config.Default())

	h.e.HandleRemote("lighting-threshold:40")

	msgs := h.remote.take()
	require.Len(t, msgs, 1)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(msgs[0], "config:")), &raw))
	for _, key := range []string{"socket", "lighting", "irrigation", "acquisitionInterval", "readingScale", "lightFadeDuration", "pingInterval"} {
		assert.Contains(t, raw, key)
	}
	assert.Contains(t, string(raw["irrigation"]), `"preOxinateDuration":5000`)
}

func TestDispatch_CountsCommands(t *testing.T) {
	h := newHarness(config.Default())
	m := metrics.New()
	h.e.metrics = m

	h.e.HandleRemote("get-oxygen")
	h.e.HandleRemote("nope")
	h.e.HandleDevice("light-level:1")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `growbox_messages_received_total{command="get-oxygen",transport="remote"} 1`)
	assert.Contains(t, body, `growbox_messages_received_total{command="unknown",transport="remote"} 1`)
	assert.Contains(t, body, `growbox_messages_received_total{command="light-level",transport="device"} 1`)
}
