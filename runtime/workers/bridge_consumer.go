package workers

import (
	"context"
	"log/slog"
	"time"

	"livepoll/contract"
)

// BridgeConsumer is the dedicated background task that drives the
// notification bridge's consume loop. Transport failures are
// transient: the loop reconnects with a delay instead of terminating.
type BridgeConsumer struct {
	log       *slog.Logger
	bridge    contract.IBridge
	retryWait time.Duration
}

func NewBridgeConsumer(log *slog.Logger, bridge contract.IBridge, retryWait time.Duration) *BridgeConsumer {
	return &BridgeConsumer{log: log, bridge: bridge, retryWait: retryWait}
}

func (w *BridgeConsumer) Run(ctx context.Context) error {
	for {
		err := w.bridge.ConsumeLoop(ctx)
		if ctx.Err() != nil {
			w.log.Debug("Context done, stopping notification consumer")
			return nil
		}
		if err != nil {
			w.log.Warn("Queue consumer disconnected, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.retryWait):
		}
	}
}
