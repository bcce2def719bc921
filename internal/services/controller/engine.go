// Package controller is the control engine of the grow box: it holds the
// commanded mode and actual status of the irrigation, lighting and oxygen
// subsystems, reconciles them on a coarse tick, ramps the light on a fast
// tick and reports changes to the device and remote peers.
//
// An Engine is not safe for concurrent use. Runner owns one and funnels
// timers and transport callbacks into a single goroutine.
package controller

import (
	"log"
	"time"

	"github.com/LeonardoBeccarini/growbox/internal/config"
	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/internal/model"
	"github.com/LeonardoBeccarini/growbox/internal/model/messages"
)

const (
	DefaultCoarseInterval = 100 * time.Millisecond
	DefaultFastInterval   = 10 * time.Millisecond
)

// Outbound commands and events.
const (
	cmdReset         = "reset"
	cmdPing          = "ping"
	cmdGetLightLevel = "get-light-level"
	cmdLightLevel    = "light-level"
	cmdConfig        = "config"
	cmdBecomeDevice  = "become-device"

	// irrigationDrive is the pump driver level used when irrigation is on.
	irrigationDrive = 200
	// lightDriveScale maps an intensity in [0,1] onto the driver range.
	lightDriveScale = 255
)

// Sender accepts an encoded outbound message. Implementations must not block.
type Sender interface {
	Send(msg string)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg string)

func (f SenderFunc) Send(msg string) { f(msg) }

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	// CoarseInterval is the nominal reconciliation period, used as dt on
	// the very first tick.
	CoarseInterval time.Duration
	// FastInterval is the fixed dt applied by every fast tick.
	FastInterval time.Duration
	// Clock timestamps forced ticks. Defaults to time.Now.
	Clock   func() time.Time
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

type Engine struct {
	cfg    config.Config
	modes  model.Modes
	status model.Status
	// target is the light intensity the fast tick ramps toward.
	target float64

	device Sender
	remote Sender

	coarseInterval time.Duration
	fastInterval   time.Duration
	clock          func() time.Time
	logger         *log.Logger
	metrics        *metrics.Metrics

	// zero lastIrrigationStart means no AUTO cycle has started yet
	lastIrrigationStart time.Time
	irrigationElapsed   time.Duration
	lastTick            time.Time
	lastPing            time.Time

	// prevModes and prevStatus are what was last reported; nil forces a
	// full report on the next tick.
	prevModes  *model.Modes
	prevStatus *model.Status
}

// New builds an engine with every subsystem in AUTO.
func New(cfg config.Config, device, remote Sender, opts Options) *Engine {
	if opts.CoarseInterval <= 0 {
		opts.CoarseInterval = DefaultCoarseInterval
	}
	if opts.FastInterval <= 0 {
		opts.FastInterval = DefaultFastInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		cfg:            cfg,
		modes:          model.DefaultModes(),
		device:         device,
		remote:         remote,
		coarseInterval: opts.CoarseInterval,
		fastInterval:   opts.FastInterval,
		clock:          opts.Clock,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

func (e *Engine) Config() config.Config { return e.cfg }
func (e *Engine) Modes() model.Modes { return e.modes }
func (e *Engine) Status() model.Status { return e.status }

// Target is the light intensity computed by the last coarse tick.
func (e *Engine) Target() float64 { return e.target }

// OnDeviceOpen performs the device handshake: reset the board and ask for a
// first reading.
func (e *Engine) OnDeviceOpen() {
	e.sendDevice(cmdReset)
	e.RequestLightLevel()
}

// OnRemoteOpen announces this process as the device to the remote peer.
func (e *Engine) OnRemoteOpen() {
	e.sendRemote(cmdBecomeDevice)
}

// RequestLightLevel polls the device for an ambient light reading.
func (e *Engine) RequestLightLevel() {
	e.sendDevice(cmdGetLightLevel)
}

func (e *Engine) sendDevice(msg string) { e.device.Send(msg) }
func (e *Engine) sendRemote(msg string) { e.remote.Send(msg) }

func (e *Engine) sendConfig() {
	e.sendRemote(messages.Encode(cmdConfig, e.cfg.Snapshot()))
}
