// Package remote connects the controller to its remote peer, either over a
// websocket or through an MQTT broker.
package remote

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/pkg/dedup"
)

const defaultQueueSize = 256

// Options are shared by every remote transport.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Backoff paces reconnection attempts. Defaults to an unbounded
	// exponential backoff capped at 10s.
	Backoff func() backoff.BackOff
	// OnOpen runs after every successful (re)connection.
	OnOpen func()
	// OnMessage receives every inbound frame.
	OnMessage func(msg string)
	// BreakerFailures consecutive write failures open the send breaker.
	BreakerFailures int
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Backoff == nil {
		o.Backoff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = 10 * time.Second
			bo.MaxElapsedTime = 0
			return bo
		}
	}
	if o.OnOpen == nil {
		o.OnOpen = func() {}
	}
	if o.OnMessage == nil {
		o.OnMessage = func(string) {}
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 5 * time.Second
	}
}

// outbox queues outbound frames for a single writer goroutine. Writes go
// through a circuit breaker; frames rejected while it is open are dropped.
type outbox struct {
	tag     string
	queue   chan string
	breaker *gobreaker.CircuitBreaker
	drops   *dedup.Deduper
	logger  *log.Logger
	metrics *metrics.Metrics
}

func newOutbox(tag string, size int, opts Options) *outbox {
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := opts.Logger
	return &outbox{
		tag:   tag,
		queue: make(chan string, size),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "remote-" + tag,
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(opts.BreakerFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Printf("remote: breaker %s %s -> %s", name, from, to)
			},
		}),
		drops:   dedup.New(10*time.Second, 64),
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// push queues msg when ready, otherwise it is dropped with a diagnostic.
func (o *outbox) push(msg string, ready bool) {
	if !ready {
		o.drop(msg, "not ready yet to transmit")
		return
	}
	select {
	case o.queue <- msg:
	default:
		o.drop(msg, "queue full")
	}
}

func (o *outbox) drop(msg, reason string) {
	o.metrics.Dropped(metrics.TransportRemote)
	ok, n := o.drops.Allow(reason)
	if !ok {
		return
	}
	if n > 0 {
		o.logger.Printf("! %s %s: %s (%d similar suppressed)", o.tag, reason, msg, n)
		return
	}
	o.logger.Printf("! %s %s: %s", o.tag, reason, msg)
}

// drain writes queued frames until ctx is cancelled. Failed frames are
// dropped.
func (o *outbox) drain(ctx context.Context, write func(context.Context, string) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-o.queue:
			o.logger.Printf("%s > %s", o.tag, msg)
			_, err := o.breaker.Execute(func() (any, error) {
				return nil, write(ctx, msg)
			})
			if err != nil {
				o.drop(msg, err.Error())
				continue
			}
			o.metrics.Sent(metrics.TransportRemote)
		}
	}
}

// flush discards frames queued for a previous connection.
func (o *outbox) flush() {
	for {
		select {
		case <-o.queue:
		default:
			return
		}
	}
}
