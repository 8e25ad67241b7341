package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vote is an immutable record of one user's choice on one poll.
// The (PollID, UserID) pair is unique, enforced by the storage layer
// so that concurrent submissions from re-established connections are
// still rejected.
type Vote struct {
	ID       uuid.UUID
	PollID   string
	OptionID string
	UserID   string
	CastAt   time.Time
}
