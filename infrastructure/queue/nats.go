// Package queue adapts NATS JetStream to the QueueTransport port:
// durable publish, pull consume with explicit acknowledgements, and
// redelivery when an acknowledgement never happens.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "livepoll/errors"
)

const reconnectWait = 2 * time.Second

type NatsTransport struct {
	log     *slog.Logger
	conn    *nats.Conn
	js      nats.JetStreamContext
	stream  string
	durable string
}

// Connect dials the queue and makes sure the stream backing the
// subject exists. The stream's file storage is what makes publishes
// durable; the transport itself implements no persistence.
func Connect(log *slog.Logger, url, stream, subject string) (*NatsTransport, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", apperrors.ErrTransport, url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: jetstream context: %v", apperrors.ErrTransport, err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			conn.Close()
			return nil, fmt.Errorf("%w: stream lookup %s: %v", apperrors.ErrTransport, stream, err)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
		}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: create stream %s: %v", apperrors.ErrTransport, stream, err)
		}
	}

	return &NatsTransport{
		log:     log,
		conn:    conn,
		js:      js,
		stream:  stream,
		durable: stream + "-relay",
	}, nil
}

func (t *NatsTransport) Publish(ctx context.Context, subject string, message []byte) error {
	if _, err := t.js.Publish(subject, message, nats.Context(ctx)); err != nil {
		return fmt.Errorf("%w: publish %s: %v", apperrors.ErrTransport, subject, err)
	}
	return nil
}

// Consume pulls queued messages until the context is done. A handler
// error triggers a negative acknowledgement so the queue redelivers;
// a failed positive acknowledgement also ends in redelivery, which the
// downstream broadcast logic tolerates.
func (t *NatsTransport) Consume(ctx context.Context, subject string, handler func(ctx context.Context, message []byte) error) error {
	sub, err := t.js.PullSubscribe(subject, t.durable, nats.ManualAck())
	if err != nil {
		return fmt.Errorf("%w: subscribe %s: %v", apperrors.ErrTransport, subject, err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := sub.Fetch(1, nats.Context(ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return fmt.Errorf("%w: fetch %s: %v", apperrors.ErrTransport, subject, err)
		}

		for _, msg := range msgs {
			if err := handler(ctx, msg.Data); err != nil {
				t.log.Warn("Notification hand-off failed, requesting redelivery", "error", err)
				_ = msg.Nak()
				continue
			}
			if err := msg.Ack(); err != nil {
				t.log.Warn("Acknowledgement failed, message will be redelivered", "error", err)
			}
		}
	}
}

func (t *NatsTransport) Close() {
	if t.conn != nil {
		_ = t.conn.Drain()
	}
}
