package controller

import (
	"time"

	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/model"
	"github.com/LeonardoBeccarini/growbox/internal/model/messages"
)

// FastTick moves the light intensity one step toward the target and drives
// the light whenever the intensity changes. The step always assumes the
// nominal fast period has elapsed.
func (e *Engine) FastTick() {
	e.metrics.Tick(metrics.TickFast)

	prev := e.status.LightIntensity
	next := Ramp(prev, e.target, e.cfg.LightFadeDuration, e.fastInterval)
	if next == prev {
		return
	}
	e.status.LightIntensity = next
	e.metrics.LightIntensity(next)
	e.sendDevice(messages.Encode(string(model.Lighting), next*lightDriveScale))
}

// Ramp returns current moved linearly toward target by
// (fadeMs/1000)*(dt in seconds), clamped to [0, 1].
func Ramp(current, target float64, fadeMs int, dt time.Duration) float64 {
	step := float64(fadeMs) / 1000 * dt.Seconds()
	switch {
	case current < target:
		current += step
	case current > target:
		current -= step
	}
	return min(max(current, 0), 1)
}
