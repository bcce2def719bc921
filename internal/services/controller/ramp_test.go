package controller

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/model"
)

const fastTick = 10 * time.Millisecond

func TestRamp_ReachesTargetWithinFadeDuration(t *testing.T) {
	cur := 0.0
	for i := 0; i < 100; i++ {
		next := Ramp(cur, 1, 1000, fastTick)
		require.GreaterOrEqual(t, next, cur, "monotonic")
		require.LessOrEqual(t, next, 1.0)
		cur = next
	}
	assert.InDelta(t, 1.0, cur, 1e-9)

	cur = Ramp(cur, 1, 1000, fastTick)
	assert.Equal(t, 1.0, cur)
}

func TestRamp_Downward(t *testing.T) {
	cur := 1.0
	for i := 0; i < 101; i++ {
		next := Ramp(cur, 0, 1000, fastTick)
		require.LessOrEqual(t, next, cur, "monotonic")
		require.GreaterOrEqual(t, next, 0.0)
		cur = next
	}
	assert.Equal(t, 0.0, cur)
}

func TestRamp_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.5, Ramp(0.5, 0.5, 1000, fastTick), "at target")
	assert.Equal(t, 0.5, Ramp(0.5, 1, 0, fastTick), "zero fade never moves")
	assert.Equal(t, 1.0, Ramp(0.995, 1, 1000, fastTick), "clamped high")
	assert.Equal(t, 0.0, Ramp(0.005, 0, 1000, fastTick), "clamped low")
	assert.InDelta(t, 0.02, Ramp(0, 1, 2000, fastTick), 1e-12)
}

func lightingValue(t *testing.T, msg string) float64 {
	t.Helper()
	raw, ok := strings.CutPrefix(msg, "lighting:")
	require.True(t, ok, "unexpected device message %q", msg)
	v, err := strconv.ParseFloat(raw, 64)
	require.NoError(t, err)
	return v
}

func TestFastTick_DrivesLightOnChange(t *testing.T) {
	h := newHarness(config.Default())
	h.tick()
	h.drain()
	require.Equal(t, 1.0, h.e.Target())

	h.e.FastTick()
	got := h.device.take()
	require.Len(t, got, 1)
	assert.InDelta(t, 2.55, lightingValue(t, got[0]), 1e-9)
	assert.Empty(t, h.remote.take(), "the ramp is reported by the coarse tick")

	for i := 0; i < 120; i++ {
		h.e.FastTick()
	}
	got = h.device.take()
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 100)
	prev := 2.55
	for _, m := range got {
		v := lightingValue(t, m)
		assert.Greater(t, v, prev-1e-9)
		prev = v
	}
	assert.Equal(t, "lighting:255", got[len(got)-1])

	h.e.FastTick()
	assert.Empty(t, h.device.take(), "no message once the target is held")
}

func TestFastTick_LightingScenario(t *testing.T) {
	h := newHarness(config.Default())
	h.e.modes.Lighting = model.ModeOff
	h.tick()
	h.drain()

	h.e.HandleRemote("lighting:2")
	assert.Contains(t, h.remote.take(), "state.lighting:2")
	require.Equal(t, 1.0, h.e.Target())

	var reported []string
	var driven int
	for i := 0; i < 15; i++ {
		for j := 0; j < 10; j++ {
			h.e.FastTick()
		}
		driven += len(withPrefix(h.device.take(), "lighting:"))
		h.advance(100 * time.Millisecond)
		reported = append(reported, withPrefix(h.remote.take(), "status.lighting:")...)
	}

	assert.GreaterOrEqual(t, driven, 100)
	require.NotEmpty(t, reported)
	assert.Equal(t, "status.lighting:1", reported[len(reported)-1])
	assert.LessOrEqual(t, len(reported), 11, "one report per coarse tick while ramping")

	h.advance(100 * time.Millisecond)
	assert.Empty(t, withPrefix(h.remote.take(), "status.lighting:"))
}
