// Package sink contains EventSink implementations: the write half of a
// live connection, consumed by the router.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "livepoll/errors"
)

const pingPeriod = 30 * time.Second

// WebsocketSink owns the write side of one websocket connection.
// Frames pass through a buffered channel so a slow peer applies
// backpressure to itself, not to the router. A dedicated goroutine is
// the only writer on the connection, as gorilla requires.
type WebsocketSink struct {
	log     *slog.Logger
	conn    *websocket.Conn
	frames  chan []byte
	timeout time.Duration
	once    sync.Once
	done    chan struct{}
}

func NewWebsocketSink(log *slog.Logger, conn *websocket.Conn, bufferSize int, timeout time.Duration) *WebsocketSink {
	s := &WebsocketSink{
		log:     log,
		conn:    conn,
		frames:  make(chan []byte, bufferSize),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Deliver queues a frame for transmission. A closed sink reports
// ErrNotConnected; a full buffer drops the frame rather than blocking
// the sender, since every tally frame supersedes the previous one.
func (s *WebsocketSink) Deliver(ctx context.Context, frame []byte) error {
	select {
	case <-s.done:
		return apperrors.ErrNotConnected
	default:
	}

	select {
	case s.frames <- frame:
		return nil
	case <-s.done:
		return apperrors.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Connection buffer full, dropping frame")
		return nil
	}
}

// Close is idempotent and safe to call concurrently with Deliver.
func (s *WebsocketSink) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

func (s *WebsocketSink) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.frames:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("Write failed, closing sink", "error", err)
				_ = s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				s.log.Debug("Ping failed, closing sink", "error", err)
				_ = s.Close()
				return
			}
		}
	}
}
