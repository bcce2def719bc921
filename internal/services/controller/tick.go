package controller

import (
	"time"

	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/model"
	"github.com/LeonardoBeccarini/growbox/internal/model/messages"
)

// Tick runs a scheduled reconciliation pass at now.
func (e *Engine) Tick(now time.Time) {
	e.tick(now, metrics.TickCoarse)
}

// ForceTick runs a reconciliation pass outside the schedule, stamped with
// the engine clock. It shares timing state with scheduled ticks, so the
// next scheduled tick only accounts for the time elapsed since this one.
func (e *Engine) ForceTick() {
	e.tick(e.clock(), metrics.TickForced)
}

func (e *Engine) tick(now time.Time, kind string) {
	dt := e.coarseInterval
	if !e.lastTick.IsZero() {
		dt = max(now.Sub(e.lastTick), 0)
	}
	e.lastTick = now
	e.metrics.Tick(kind)

	e.target = e.lightTarget()
	e.reconcileIrrigation(now, dt)
	e.report(now)
}

// lightTarget maps the lighting mode (and, in AUTO, the ambient reading)
// onto the intensity the ramp should reach.
func (e *Engine) lightTarget() float64 {
	switch e.modes.Lighting {
	case model.ModeOn:
		return 1
	case model.ModeAuto:
		brightness := float64(e.status.LightLevel) / float64(e.cfg.ReadingScale) * 100
		if brightness <= float64(e.cfg.Lighting.Threshold) {
			return 1
		}
	}
	return 0
}

// reconcileIrrigation advances the irrigation/oxygen coupling. ON and OFF
// drive both outputs directly; AUTO runs the cycle
// idle -> pre-oxygenate -> irrigate -> idle.
func (e *Engine) reconcileIrrigation(now time.Time, dt time.Duration) {
	irr := e.cfg.Irrigation
	switch e.modes.Irrigation {
	case model.ModeOn:
		e.status.IrrigationOn = true
		e.status.OxygenOn = true
		e.lastIrrigationStart = now

	case model.ModeOff:
		e.status.IrrigationOn = false
		e.status.OxygenOn = false

	case model.ModeAuto:
		preOxygenate := config.Millis(irr.PreOxygenateLength)

		if !e.status.OxygenOn {
			// both operands are non-negative, so the difference cannot overflow
			if e.lastIrrigationStart.IsZero() || now.Sub(e.lastIrrigationStart) > config.Millis(irr.Interval)-preOxygenate {
				e.status.IrrigationOn = false
				e.status.OxygenOn = true
				e.irrigationElapsed = 0
				e.lastIrrigationStart = now
			}
			return
		}

		e.irrigationElapsed += dt
		switch {
		case e.irrigationElapsed-preOxygenate > config.Millis(irr.Duration):
			e.status.IrrigationOn = false
			e.status.OxygenOn = false
		case e.irrigationElapsed < preOxygenate:
			e.status.IrrigationOn = false
		default:
			e.status.IrrigationOn = true
		}
	}
}

// report sends every mode and status that changed since the last report,
// keeps the device link alive, then records what was reported.
func (e *Engine) report(now time.Time) {
	for _, s := range model.Subsystems {
		mode := e.modes.Get(s)
		e.metrics.Mode(string(s), int(mode))
		if e.prevModes == nil || e.prevModes.Get(s) != mode {
			e.sendRemote(messages.Encode("state."+string(s), int(mode)))
		}
	}

	for _, f := range model.StatusFields {
		if !e.status.Changed(e.prevStatus, f) {
			continue
		}
		value := e.status.Value(f)
		switch f {
		case model.StatusIrrigation:
			drive := 0
			if e.status.IrrigationOn {
				drive = irrigationDrive
			}
			e.sendDevice(messages.Encode(string(model.Irrigation), drive))
		case model.StatusLighting:
			// driven by the fast tick
		default:
			e.sendDevice(messages.Encode(string(f), value))
		}
		e.sendRemote(messages.Encode("status."+string(f), value))
	}
	e.metrics.SubsystemOn(string(model.Irrigation), e.status.IrrigationOn)
	e.metrics.SubsystemOn(string(model.Oxygen), e.status.OxygenOn)

	if now.Sub(e.lastPing) > config.Millis(e.cfg.PingInterval) {
		e.sendDevice(cmdPing)
		e.lastPing = now
	}

	modes, status := e.modes, e.status
	e.prevModes, e.prevStatus = &modes, &status
}
