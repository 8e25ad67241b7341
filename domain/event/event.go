package event

import (
	"encoding/json"

	"livepoll/domain"
)

// DomainEvent is a tagged variant delivered to connected voters.
// Each variant knows its wire tag; Marshal stamps it into the frame.
type DomainEvent interface {
	EventType() string
}

// VoterJoined announces a new live connection to everyone.
type VoterJoined struct {
	DisplayName string `json:"data"`
	UserID      string `json:"user_id"`
}

func (VoterJoined) EventType() string { return "voter_join" }

// VoterLeft announces a departure. Delivery is best-effort.
type VoterLeft struct {
	DisplayName string `json:"data"`
	UserID      string `json:"user_id"`
}

func (VoterLeft) EventType() string { return "voter_leave" }

// ErrorNotice carries a short human string back to one client.
// Internals never leak through it.
type ErrorNotice struct {
	Reason string `json:"data"`
}

func (ErrorNotice) EventType() string { return "error" }

// TallyUpdated carries the recomputed per-option counts of a poll.
// Re-displaying the same tally twice is harmless, which is what makes
// at-least-once queue delivery acceptable downstream.
type TallyUpdated struct {
	PollID   string               `json:"poll_id"`
	Question string               `json:"question"`
	Votes    []domain.OptionCount `json:"votes"`
}

func (TallyUpdated) EventType() string { return "tally" }

// FromTally projects a TallyResult into its wire event.
func FromTally(t domain.TallyResult) TallyUpdated {
	return TallyUpdated{PollID: t.PollID, Question: t.Question, Votes: t.Votes}
}

// Marshal renders an event as its canonical JSON frame, tagging it with
// the variant's wire type.
func Marshal(e DomainEvent) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	frame["type"] = e.EventType()
	return json.Marshal(frame)
}
