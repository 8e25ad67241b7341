//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"livepoll/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound half of one live connection. Deliver hands
// a pre-encoded frame to the connection; Close tears it down. Deliver
// on a closed sink must fail cleanly, never panic.
type EventSink interface {
	Deliver(ctx context.Context, frame []byte) error
	Close() error
}

// IRegistry tracks which logical users are currently connected.
// Register evicts any previous connection for the same user id
// (last-write-wins). Release removes the entry only if it still points
// at the given sink, so an evicted connection's cleanup cannot tear
// down its successor.
type IRegistry interface {
	Register(user domain.User, sink EventSink)
	Unregister(userID string)
	Release(userID string, sink EventSink) bool
	Lookup(userID string) (domain.User, bool)
	SnapshotIDs() []string
	Count() int
}

// DeliveryResult reports one recipient's outcome of a multi-send.
type DeliveryResult struct {
	UserID string
	Err    error
}

// IRouter fans payloads out to connected users. Payloads are encoded
// to canonical JSON once per call, before any delivery is attempted.
type IRouter interface {
	SendTo(ctx context.Context, userID string, payload any) error
	SendToMany(ctx context.Context, userIDs []string, payload any) []DeliveryResult
	SendToAll(ctx context.Context, payload any) (int, error)
}

// IBridge relays notifications through the durable queue. ConsumeLoop
// blocks until the context is done, acknowledging each queued message
// only after hand-off to the router (at-least-once semantics).
type IBridge interface {
	Publish(ctx context.Context, n domain.Notification) error
	ConsumeLoop(ctx context.Context) error
}

// IVoteService coordinates vote submission with storage and fan-out.
type IVoteService interface {
	SubmitVote(ctx context.Context, userID, pollID, optionID string) (domain.TallyResult, error)
	Tally(ctx context.Context, pollID string) (domain.TallyResult, error)
}

// VoteStorage is the narrow query/command surface this core needs from
// the relational store. InsertVote relies on the store's uniqueness
// constraint over (poll_id, user_id) and reports a violation as
// errors.ErrAlreadyVoted.
type VoteStorage interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetPoll(ctx context.Context, pollID string) (domain.Poll, error)
	InsertVote(ctx context.Context, vote domain.Vote) error
	CountVotes(ctx context.Context, pollID string) (domain.TallyResult, error)
}

// QueueTransport is the connect/publish/consume contract of the
// external durable queue. Consume invokes the handler once per queued
// message; a handler error withholds the acknowledgement so the queue
// redelivers.
type QueueTransport interface {
	Publish(ctx context.Context, subject string, message []byte) error
	Consume(ctx context.Context, subject string, handler func(ctx context.Context, message []byte) error) error
}
