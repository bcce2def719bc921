// Package device is the serial link to the grow box board. Messages are
// single lines in the name:p1:p2 format.
package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"

	"github.com/LeonardoBeccarini/growbox/internal/metrics"
	"github.com/LeonardoBeccarini/growbox/pkg/dedup"
)

const (
	DefaultBaudRate  = 9600
	defaultQueueSize = 256
)

// Opener opens the named port.
type Opener func(name string, baud int) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port in 8N1 mode.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", name, err)
	}
	return p, nil
}

type Config struct {
	Port      string
	BaudRate  int
	QueueSize int
}

type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Open defaults to OpenSerial.
	Open Opener
	// Backoff paces reopen attempts. Defaults to an unbounded exponential
	// backoff capped at 5s.
	Backoff func() backoff.BackOff
	// OnOpen runs every time the port is (re)opened.
	OnOpen func()
	// OnMessage receives every non-empty inbound line.
	OnMessage func(line string)
}

// Serial keeps a serial port open, reopening it when the board resets or
// is unplugged.
type Serial struct {
	cfg       Config
	open      Opener
	backoff   func() backoff.BackOff
	logger    *log.Logger
	metrics   *metrics.Metrics
	onOpen    func()
	onMessage func(string)

	out   chan string
	drops *dedup.Deduper

	mu        sync.RWMutex
	connected bool
}

func NewSerial(cfg Config, opts Options) *Serial {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if opts.Open == nil {
		opts.Open = OpenSerial
	}
	if opts.Backoff == nil {
		opts.Backoff = func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = 5 * time.Second
			bo.MaxElapsedTime = 0
			return bo
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.OnOpen == nil {
		opts.OnOpen = func() {}
	}
	if opts.OnMessage == nil {
		opts.OnMessage = func(string) {}
	}
	return &Serial{
		cfg:       cfg,
		open:      opts.Open,
		backoff:   opts.Backoff,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		onOpen:    opts.OnOpen,
		onMessage: opts.OnMessage,
		out:       make(chan string, cfg.QueueSize),
		drops:     dedup.New(10*time.Second, 64),
	}
}

// Connected reports whether the port is currently open.
func (s *Serial) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Serial) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Send queues msg for the board. It never blocks: while the port is closed
// or the queue is full the message is dropped.
func (s *Serial) Send(msg string) {
	if !s.Connected() {
		s.drop(msg, "port not open")
		return
	}
	select {
	case s.out <- msg:
	default:
		s.drop(msg, "queue full")
	}
}

func (s *Serial) drop(msg, reason string) {
	s.metrics.Dropped(metrics.TransportDevice)
	if ok, n := s.drops.Allow(reason); ok {
		if n > 0 {
			s.logger.Printf("! serial: %s, dropping %q (%d similar suppressed)", reason, msg, n)
			return
		}
		s.logger.Printf("! serial: %s, dropping %q", reason, msg)
	}
}

// Run opens the port and serves it until ctx is cancelled, reopening after
// every failure.
func (s *Serial) Run(ctx context.Context) error {
	for {
		port, err := s.openWithRetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = s.serve(ctx, port)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Printf("serial: %s closed (%v), reopening", s.cfg.Port, err)
	}
}

func (s *Serial) openWithRetry(ctx context.Context) (io.ReadWriteCloser, error) {
	var port io.ReadWriteCloser
	err := backoff.Retry(func() error {
		p, err := s.open(s.cfg.Port, s.cfg.BaudRate)
		if err != nil {
			s.logger.Printf("serial: %v", err)
			return err
		}
		port = p
		return nil
	}, backoff.WithContext(s.backoff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", s.cfg.Port, err)
	}
	return port, nil
}

func (s *Serial) serve(ctx context.Context, port io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = port.Close()
	}()
	go func() {
		defer wg.Done()
		s.writeLoop(ctx, port)
	}()

	s.setConnected(true)
	defer s.setConnected(false)
	s.logger.Printf("serial: opened %s at %d baud", s.cfg.Port, s.cfg.BaudRate)
	s.onOpen()

	return s.readLoop(port)
}

// readLoop hands every line to onMessage. Trailing CR is stripped, so both
// LF and CRLF framing are accepted.
func (s *Serial) readLoop(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		s.logger.Printf("SERIAL < %s", line)
		s.onMessage(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("device: read: %w", err)
	}
	return io.EOF
}

func (s *Serial) writeLoop(ctx context.Context, port io.WriteCloser) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.out:
			s.logger.Printf("SERIAL > %s", msg)
			if _, err := io.WriteString(port, msg+"\n"); err != nil {
				s.logger.Printf("serial: write: %v", err)
				_ = port.Close()
				return
			}
			s.metrics.Sent(metrics.TransportDevice)
		}
	}
}
