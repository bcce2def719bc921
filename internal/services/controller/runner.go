package controller

import (
	"context"
	"time"
)

// Runner serialises every event that touches an Engine: the coarse and fast
// timers, the light-level poll and inbound transport traffic all run on the
// goroutine executing Run.
type Runner struct {
	engine *Engine
	inbox  chan func(*Engine)
	done   chan struct{}

	// acquisition is nil until the device first opens, then restarts on
	// every reopen
	acquisition *time.Ticker
}

func NewRunner(e *Engine) *Runner {
	return &Runner{
		engine: e,
		inbox:  make(chan func(*Engine), 64),
		done:   make(chan struct{}),
	}
}

// DeviceMessage queues a raw line received from the device.
func (r *Runner) DeviceMessage(raw string) {
	r.post(func(e *Engine) { e.HandleDevice(raw) })
}

// RemoteMessage queues a raw frame received from the remote peer.
func (r *Runner) RemoteMessage(raw string) {
	r.post(func(e *Engine) { e.HandleRemote(raw) })
}

// DeviceOpened runs the device handshake and restarts light-level polling.
func (r *Runner) DeviceOpened() {
	r.post(func(e *Engine) {
		period := e.Config().AcquisitionPeriod()
		if r.acquisition == nil {
			r.acquisition = time.NewTicker(period)
		} else {
			r.acquisition.Reset(period)
		}
		e.OnDeviceOpen()
	})
}

// RemoteOpened runs the remote handshake.
func (r *Runner) RemoteOpened() {
	r.post(func(e *Engine) { e.OnRemoteOpen() })
}

// post hands fn to the run loop. It drops fn once Run has returned.
func (r *Runner) post(fn func(*Engine)) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// acquisitionC blocks forever until the device has opened.
func (r *Runner) acquisitionC() <-chan time.Time {
	if r.acquisition == nil {
		return nil
	}
	return r.acquisition.C
}

// Run drives the engine until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	e := r.engine
	coarse := time.NewTicker(e.coarseInterval)
	defer coarse.Stop()
	fast := time.NewTicker(e.fastInterval)
	defer fast.Stop()
	defer func() {
		if r.acquisition != nil {
			r.acquisition.Stop()
		}
	}()

	e.logger.Printf("controller: running (coarse=%s fast=%s)", e.coarseInterval, e.fastInterval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Printf("controller: stopped")
			return nil
		case now := <-coarse.C:
			e.Tick(now)
		case <-fast.C:
			e.FastTick()
		case <-r.acquisitionC():
			e.RequestLightLevel()
		case fn := <-r.inbox:
			fn(e)
		}
	}
}
