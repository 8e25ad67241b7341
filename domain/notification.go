package domain

import "encoding/json"

// Notification is a transient message relayed through the durable queue.
// Recipients is only meaningful when Broadcast is false. The payload is
// an already-encoded frame so the consumer side can hand it straight to
// the router without re-interpreting it.
type Notification struct {
	Broadcast  bool            `json:"broadcast"`
	Recipients []string        `json:"recipients,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}
