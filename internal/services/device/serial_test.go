package device

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/growbox/internal/metrics"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func fastRetry() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

func TestSerial_ExchangesLinesAndReopens(t *testing.T) {
	boards := make(chan net.Conn, 4)
	var attempts atomic.Int32
	open := func(name string, baud int) (io.ReadWriteCloser, error) {
		if name != "/dev/ttyACM0" || baud != DefaultBaudRate {
			return nil, errors.New("unexpected port")
		}
		if attempts.Add(1) == 1 {
			return nil, errors.New("resource busy")
		}
		host, board := net.Pipe()
		boards <- board
		return host, nil
	}

	opened := make(chan struct{}, 4)
	lines := make(chan string, 4)
	s := NewSerial(Config{Port: "/dev/ttyACM0"}, Options{
		Logger:    log.New(io.Discard, "", 0),
		Open:      open,
		Backoff:   fastRetry,
		OnOpen:    func() { opened <- struct{}{} },
		OnMessage: func(line string) { lines <- line },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	board := recv(t, boards)
	recv(t, opened)
	assert.True(t, s.Connected())

	go func() { _, _ = board.Write([]byte("light-level:600\r\n\r\nlight-level:7\n")) }()
	assert.Equal(t, "light-level:600", recv(t, lines))
	assert.Equal(t, "light-level:7", recv(t, lines))

	s.Send("reset")
	got, err := bufio.NewReader(board).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "reset\n", got)

	require.NoError(t, board.Close())
	board = recv(t, boards)
	recv(t, opened)
	assert.Equal(t, int32(3), attempts.Load())

	cancel()
	assert.NoError(t, recv(t, errc))
	assert.False(t, s.Connected())
	_ = board.Close()
}

func TestSerial_SendWhileClosedDrops(t *testing.T) {
	m := metrics.New()
	s := NewSerial(Config{Port: "/dev/null"}, Options{
		Logger:  log.New(io.Discard, "", 0),
		Metrics: m,
	})

	s.Send("ping")
	s.Send("ping")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `growbox_messages_dropped_total{transport="device"} 2`)
	assert.Empty(t, s.out)
}

func TestSerial_RunStopsWhileRetrying(t *testing.T) {
	s := NewSerial(Config{Port: "/dev/ttyACM9"}, Options{
		Logger:  log.New(io.Discard, "", 0),
		Open:    func(string, int) (io.ReadWriteCloser, error) { return nil, errors.New("no such device") },
		Backoff: fastRetry,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, s.Run(ctx))
}
