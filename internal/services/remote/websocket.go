package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const socketTag = "SOCKET"

type WebSocketConfig struct {
	// URL of the remote peer, e.g. ws://127.0.0.1:8080/.
	URL         string
	DialTimeout time.Duration
	QueueSize   int
}

// WebSocket keeps a websocket session with the remote peer, redialling
// whenever it drops.
type WebSocket struct {
	cfg  WebSocketConfig
	opts Options
	out  *outbox

	mu        sync.RWMutex
	connected bool
}

func NewWebSocket(cfg WebSocketConfig, opts Options) *WebSocket {
	opts.defaults()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &WebSocket{
		cfg:  cfg,
		opts: opts,
		out:  newOutbox(socketTag, cfg.QueueSize, opts),
	}
}

// Connected reports whether a session is open.
func (w *WebSocket) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *WebSocket) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

// Send queues msg for the peer. It never blocks; frames sent while the
// session is down are dropped.
func (w *WebSocket) Send(msg string) {
	w.out.push(msg, w.Connected())
}

// Run keeps a session open until ctx is cancelled.
func (w *WebSocket) Run(ctx context.Context) error {
	for {
		conn, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = w.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		w.opts.Logger.Printf("remote: redialling %s", w.cfg.URL)
	}
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		dctx, cancel := context.WithTimeout(ctx, w.cfg.DialTimeout)
		defer cancel()
		c, _, err := websocket.Dial(dctx, w.cfg.URL, nil)
		if err != nil {
			w.opts.Logger.Printf("remote: dial %s: %v", w.cfg.URL, err)
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(w.opts.Backoff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", w.cfg.URL, err)
	}
	return conn, nil
}

func (w *WebSocket) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.out.flush()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.out.drain(ctx, func(ctx context.Context, msg string) error {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				_ = conn.CloseNow()
				return err
			}
			return nil
		})
	}()

	id := uuid.NewString()
	w.setConnected(true)
	w.opts.Logger.Printf("remote: connected to %s (session %s)", w.cfg.URL, id)
	w.opts.OnOpen()

	err := w.readLoop(ctx, conn)

	w.setConnected(false)
	w.opts.Logger.Printf("remote: session %s closed (%v)", id, err)
	cancel()
	<-done
	_ = conn.CloseNow()
	return err
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		msg := string(data)
		w.opts.Logger.Printf("%s < %s", socketTag, msg)
		w.opts.OnMessage(msg)
	}
}
