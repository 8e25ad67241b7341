package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"livepoll/contract"
	"livepoll/domain/event"
	apperrors "livepoll/errors"
)

// Router fans payloads out to live connections. It never owns the
// connections, it only borrows registry lookups for the duration of a
// send. Every payload is encoded exactly once per call, before any
// delivery is attempted.
type Router struct {
	log      *slog.Logger
	registry *Registry
}

func NewRouter(log *slog.Logger, registry *Registry) *Router {
	return &Router{log: log, registry: registry}
}

// SendTo delivers a payload to a single user. A missing or closed
// handle is a recoverable condition reported as ErrNotConnected.
func (r *Router) SendTo(ctx context.Context, userID string, payload any) error {
	frame, err := encode(payload)
	if err != nil {
		return err
	}
	return r.deliver(ctx, userID, frame)
}

// SendToMany attempts delivery to each recipient and reports the
// outcome per id. Partial failure is expected, never escalated.
// A serialization failure aborts before any delivery.
func (r *Router) SendToMany(ctx context.Context, userIDs []string, payload any) []contract.DeliveryResult {
	frame, err := encode(payload)
	if err != nil {
		results := make([]contract.DeliveryResult, 0, len(userIDs))
		for _, id := range userIDs {
			results = append(results, contract.DeliveryResult{UserID: id, Err: err})
		}
		return results
	}

	results := make([]contract.DeliveryResult, 0, len(userIDs))
	for _, id := range userIDs {
		results = append(results, contract.DeliveryResult{UserID: id, Err: r.deliver(ctx, id, frame)})
	}
	return results
}

// SendToAll delivers to exactly the set of users connected when the
// snapshot is taken and returns how many deliveries succeeded.
// Individual failures are logged and swallowed so one broken
// connection cannot block the rest.
func (r *Router) SendToAll(ctx context.Context, payload any) (int, error) {
	frame, err := encode(payload)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, id := range r.registry.SnapshotIDs() {
		if err := r.deliver(ctx, id, frame); err != nil {
			r.log.Debug("Broadcast delivery skipped", "user_id", id, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (r *Router) deliver(ctx context.Context, userID string, frame []byte) error {
	sink, ok := r.registry.sinkFor(userID)
	if !ok {
		return fmt.Errorf("user %s: %w", userID, apperrors.ErrNotConnected)
	}
	if err := sink.Deliver(ctx, frame); err != nil {
		return fmt.Errorf("user %s: %w", userID, apperrors.ErrNotConnected)
	}
	return nil
}

// encode renders a payload to its canonical JSON frame. Domain events
// carry their own wire tag; anything else must be JSON-marshalable or
// the call fails fast with ErrSerialization.
func encode(payload any) ([]byte, error) {
	var (
		frame []byte
		err   error
	)
	switch p := payload.(type) {
	case event.DomainEvent:
		frame, err = event.Marshal(p)
	case json.RawMessage:
		frame = p
	default:
		frame, err = json.Marshal(p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	return frame, nil
}
