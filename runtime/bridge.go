package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"livepoll/contract"
	"livepoll/domain"
	apperrors "livepoll/errors"
)

// Bridge relays notifications through the durable queue, decoupling
// vote-result delivery from the request path and letting other
// processes reach the users connected here.
type Bridge struct {
	log      *slog.Logger
	queue    contract.QueueTransport
	subject  string
	registry contract.IRegistry
	router   contract.IRouter
}

func NewBridge(log *slog.Logger, queue contract.QueueTransport, subject string,
	registry contract.IRegistry, router contract.IRouter) *Bridge {
	return &Bridge{log: log, queue: queue, subject: subject, registry: registry, router: router}
}

// Publish serializes and enqueues a notification. A transport failure
// is retryable by the caller; the notification is not silently lost.
func (b *Bridge) Publish(ctx context.Context, n domain.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	if err := b.queue.Publish(ctx, b.subject, raw); err != nil {
		if errors.Is(err, apperrors.ErrTransport) {
			return err
		}
		return fmt.Errorf("%w: enqueue notification: %v", apperrors.ErrTransport, err)
	}
	return nil
}

// ConsumeLoop receives queued notifications until the context is done.
// Each message is acknowledged only after hand-off to the router for
// every intended recipient in the current snapshot, so redelivery
// (at-least-once) is the failure mode, never loss.
func (b *Bridge) ConsumeLoop(ctx context.Context) error {
	return b.queue.Consume(ctx, b.subject, b.handle)
}

func (b *Bridge) handle(ctx context.Context, message []byte) error {
	var n domain.Notification
	if err := json.Unmarshal(message, &n); err != nil {
		// A frame that cannot be decoded will not improve on redelivery.
		b.log.Error("Dropping malformed notification", "error", err)
		return nil
	}

	if n.Broadcast {
		delivered, err := b.router.SendToAll(ctx, n.Payload)
		if err != nil {
			b.log.Error("Broadcast notification not deliverable", "error", err)
			return nil
		}
		b.log.Debug("Broadcast notification relayed", "delivered", delivered)
		return nil
	}

	// Recipients not connected right now are skipped, not queued for
	// later: this core offers no offline delivery.
	connected := lo.Intersect(n.Recipients, b.registry.SnapshotIDs())
	for _, res := range b.router.SendToMany(ctx, connected, n.Payload) {
		if res.Err != nil {
			b.log.Debug("Targeted notification skipped", "user_id", res.UserID, "error", res.Err)
		}
	}
	return nil
}
