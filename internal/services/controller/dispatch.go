package controller

import (
	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/model"
	"github.com/LeonardoBeccarini/growbox/internal/model/messages"
)

type handler func(e *Engine, m messages.Message)

// deviceCommands are accepted from the hardware peer.
var deviceCommands = map[string]handler{
	cmdLightLevel: (*Engine).onLightLevel,
}

// remoteCommands are accepted from the remote peer.
var remoteCommands = map[string]handler{
	"irrigation": setMode(model.Irrigation),
	"lighting":   setMode(model.Lighting),
	"oxygen":     setMode(model.Oxygen),

	"get-irrigation": getMode(model.Irrigation),
	"get-lighting":   getMode(model.Lighting),
	"get-oxygen":     getMode(model.Oxygen),
	// Replies with the oxygen mode, not the light level.
	cmdGetLightLevel: getMode(model.Oxygen),

	"get-config": (*Engine).onGetConfig,

	"lighting-threshold":  setConfig((*config.Config).SetLightingThreshold),
	"irrigation-interval": setConfig((*config.Config).SetIrrigationInterval),
	"irrigation-duration": setConfig((*config.Config).SetIrrigationDuration),
}

// HandleDevice decodes and dispatches a message received from the device.
// Unknown commands are ignored.
func (e *Engine) HandleDevice(raw string) {
	e.dispatch(deviceCommands, metrics.TransportDevice, raw)
}

// HandleRemote decodes and dispatches a message received from the remote
// peer. Unknown commands are ignored.
func (e *Engine) HandleRemote(raw string) {
	e.dispatch(remoteCommands, metrics.TransportRemote, raw)
}

func (e *Engine) dispatch(table map[string]handler, transport, raw string) {
	m := messages.Decode(raw)
	h, ok := table[m.Name]
	if !ok {
		e.metrics.Received(transport, "unknown")
		return
	}
	e.metrics.Received(transport, m.Name)
	h(e, m)
}

func (e *Engine) onLightLevel(m messages.Message) {
	v, ok := m.IntParam(0)
	if !ok {
		e.invalid(m)
		return
	}
	e.status.LightLevel = e.cfg.ClampLightLevel(v)
	e.metrics.LightLevel(e.status.LightLevel)

	e.sendRemote(messages.Encode(cmdLightLevel, e.status.LightLevel))
}

func (e *Engine) onGetConfig(messages.Message) {
	e.prevModes = nil
	e.prevStatus = nil

	e.sendConfig()
	e.ForceTick()
}

func setMode(s model.Subsystem) handler {
	return func(e *Engine, m messages.Message) {
		v, ok := m.IntParam(0)
		if !ok {
			e.invalid(m)
			return
		}
		mode, err := model.ParseMode(v)
		if err != nil {
			e.logger.Printf("controller: %s: %v", m.Name, err)
			return
		}
		e.modes.Set(s, mode)
		e.ForceTick()
	}
}

func getMode(s model.Subsystem) handler {
	return func(e *Engine, _ messages.Message) {
		e.sendRemote(messages.Encode(string(s), int(e.modes.Get(s))))
	}
}

func setConfig(set func(*config.Config, int) int) handler {
	return func(e *Engine, m messages.Message) {
		v, ok := m.IntParam(0)
		if !ok {
			e.invalid(m)
			return
		}
		stored := set(&e.cfg, v)
		if stored != v {
			e.logger.Printf("controller: %s: %d clamped to %d", m.Name, v, stored)
		}
		e.sendConfig()
	}
}

func (e *Engine) invalid(m messages.Message) {
	e.logger.Printf("controller: ignoring %q: missing or malformed parameter", m.String())
}
