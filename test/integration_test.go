package test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"livepoll/domain"
	apperrors "livepoll/errors"
	"livepoll/runtime"
	"livepoll/runtime/workers"
	"livepoll/services"
)

// memoryQueue is an in-process stand-in for the durable queue, good
// enough to drive the full vote -> publish -> consume -> deliver path.
type memoryQueue struct {
	messages chan []byte
}

func (q *memoryQueue) Publish(ctx context.Context, _ string, message []byte) error {
	select {
	case q.messages <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Consume(ctx context.Context, _ string, handler func(ctx context.Context, message []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-q.messages:
			_ = handler(ctx, message)
		}
	}
}

// signalSink collects delivered frames and signals each arrival.
type signalSink struct {
	mu      sync.Mutex
	frames  [][]byte
	arrived chan struct{}
	closed  bool
}

func newSignalSink() *signalSink {
	return &signalSink{arrived: make(chan struct{}, 8)}
}

func (s *signalSink) Deliver(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotConnected
	}
	s.frames = append(s.frames, frame)
	s.arrived <- struct{}{}
	return nil
}

func (s *signalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *signalSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

type memoryStorage struct {
	mu    sync.Mutex
	poll  domain.Poll
	votes map[string]string // poll|user -> option
}

func (s *memoryStorage) GetUser(_ context.Context, userID string) (domain.User, error) {
	return domain.User{ID: userID, Name: userID}, nil
}

func (s *memoryStorage) GetPoll(_ context.Context, pollID string) (domain.Poll, error) {
	if pollID != s.poll.ID {
		return domain.Poll{}, apperrors.ErrPollNotFound
	}
	return s.poll, nil
}

func (s *memoryStorage) InsertVote(_ context.Context, vote domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := vote.PollID + "|" + vote.UserID
	if _, exists := s.votes[key]; exists {
		return apperrors.ErrAlreadyVoted
	}
	s.votes[key] = vote.OptionID
	return nil
}

func (s *memoryStorage) CountVotes(_ context.Context, pollID string) (domain.TallyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tally := domain.TallyResult{PollID: pollID}
	for _, option := range s.poll.Options {
		count := domain.OptionCount{Option: option.Label}
		for _, chosen := range s.votes {
			if chosen == option.ID {
				count.Total++
			}
		}
		tally.Votes = append(tally.Votes, count)
	}
	return tally, nil
}

// Test_Scenario drives the whole pipeline: a submitted vote is
// persisted, its tally is published through the queue, and the
// supervised consumer relays it to every connected voter.
func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	log := slog.Default()

	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry)
	queue := &memoryQueue{messages: make(chan []byte, 8)}
	bridge := runtime.NewBridge(log, queue, "poll.results", registry, router)

	storage := &memoryStorage{
		poll: domain.Poll{
			ID:       "p1",
			Question: "Favourite colour?",
			Options: []domain.Option{
				{ID: "o1", PollID: "p1", Label: "Red"},
				{ID: "o2", PollID: "p1", Label: "Blue"},
			},
		},
		votes: make(map[string]string),
	}
	votes := services.NewVoteService(log, storage, router, bridge, nil, time.Second)

	// Given two connected voters
	alice := newSignalSink()
	bob := newSignalSink()
	registry.Register(domain.User{ID: "alice", Name: "Alice"}, alice)
	registry.Register(domain.User{ID: "bob", Name: "Bob"}, bob)

	// And a supervised consumer draining the queue
	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	supervisor.Add(workers.NewBridgeConsumer(log, bridge, 100*time.Millisecond))
	go supervisor.Run(ctx)
	t.Cleanup(supervisor.Stop)

	// When one voter casts a vote
	tally, err := votes.SubmitVote(ctx, "alice", "p1", "o1")
	req.NoError(err)
	req.EqualValues(1, tally.Sum())

	// Then the tally frame reaches both voters through the queue
	for _, snk := range []*signalSink{alice, bob} {
		select {
		case <-snk.arrived:
		case <-time.After(2 * time.Second):
			req.Fail("Timeout: tally has never reached the connected voter")
		}
	}

	var frame map[string]any
	req.NoError(json.Unmarshal(alice.Frames()[0], &frame))
	req.Equal("tally", frame["type"])
	req.Equal("p1", frame["poll_id"])

	// And a second attempt by the same voter is rejected without
	// touching the persisted count
	_, err = votes.SubmitVote(ctx, "alice", "p1", "o2")
	req.ErrorIs(err, apperrors.ErrAlreadyVoted)

	recount, err := votes.Tally(ctx, "p1")
	req.NoError(err)
	req.EqualValues(1, recount.Sum())

	// The rejection notice is the only extra frame the submitter sees
	select {
	case <-alice.arrived:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: rejection notice has never reached the submitter")
	}
	var rejection map[string]any
	frames := alice.Frames()
	req.NoError(json.Unmarshal(frames[len(frames)-1], &rejection))
	req.Equal("error", rejection["type"])
}
