// Package services hosts the application use cases sitting between the
// transport layer and the runtime/storage ports.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"livepoll/contract"
	"livepoll/domain"
	"livepoll/domain/event"
	apperrors "livepoll/errors"
)

// Audience derives the recipients of a tally notification at publish
// time. A nil Audience means every notification is a broadcast.
type Audience func() []string

// VoteService records a vote exactly once per (poll, user), recomputes
// the tally, and hands the result to the notification bridge. Each
// attempt walks Received -> Validated -> Persisted -> Aggregated ->
// Published; a failure at any stage leaves no partial vote behind,
// because the only write is the single constrained insert.
type VoteService struct {
	log            *slog.Logger
	storage        contract.VoteStorage
	router         contract.IRouter
	bridge         contract.IBridge
	audience       Audience
	storageTimeout time.Duration
}

func NewVoteService(log *slog.Logger, storage contract.VoteStorage, router contract.IRouter,
	bridge contract.IBridge, audience Audience, storageTimeout time.Duration) *VoteService {
	return &VoteService{
		log:            log,
		storage:        storage,
		router:         router,
		bridge:         bridge,
		audience:       audience,
		storageTimeout: storageTimeout,
	}
}

// SubmitVote validates, persists and publishes one vote attempt.
// A uniqueness conflict on (poll_id, user_id) is the expected, common
// rejection path: the submitter gets a direct error frame and storage
// stays untouched. A publish failure never rolls back a persisted
// vote; losing a notification beats losing a cast ballot.
func (s *VoteService) SubmitVote(ctx context.Context, userID, pollID, optionID string) (domain.TallyResult, error) {
	poll, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return domain.TallyResult{}, err
	}
	if !poll.HasOption(optionID) {
		return domain.TallyResult{}, fmt.Errorf("option %s on poll %s: %w", optionID, pollID, apperrors.ErrInvalidOption)
	}

	vote := domain.Vote{
		ID:       uuid.New(),
		PollID:   pollID,
		OptionID: optionID,
		UserID:   userID,
		CastAt:   time.Now().UTC(),
	}
	if err := s.insertVote(ctx, vote); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyVoted) {
			if sendErr := s.router.SendTo(ctx, userID, event.ErrorNotice{Reason: "vote already cast for this poll"}); sendErr != nil {
				s.log.Debug("Rejection notice not deliverable", "user_id", userID, "error", sendErr)
			}
		}
		return domain.TallyResult{}, err
	}

	tally, err := s.countVotes(ctx, poll)
	if err != nil {
		// The vote is durable; only the projection failed.
		return domain.TallyResult{}, err
	}

	if err := s.publishTally(ctx, tally); err != nil {
		s.log.Error("Tally publish failed, vote remains durable",
			"poll_id", pollID, "user_id", userID, "error", err)
	}
	return tally, nil
}

// Tally recomputes the current projection of a poll, for late joiners.
func (s *VoteService) Tally(ctx context.Context, pollID string) (domain.TallyResult, error) {
	poll, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return domain.TallyResult{}, err
	}
	return s.countVotes(ctx, poll)
}

func (s *VoteService) loadPoll(ctx context.Context, pollID string) (domain.Poll, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	poll, err := s.storage.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPollNotFound) {
			return domain.Poll{}, fmt.Errorf("poll %s: %w", pollID, apperrors.ErrInvalidOption)
		}
		return domain.Poll{}, fmt.Errorf("load poll %s: %w", pollID, err)
	}
	return poll, nil
}

func (s *VoteService) insertVote(ctx context.Context, vote domain.Vote) error {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	if err := s.storage.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyVoted) {
			return fmt.Errorf("poll %s user %s: %w", vote.PollID, vote.UserID, apperrors.ErrAlreadyVoted)
		}
		return fmt.Errorf("persist vote poll %s user %s: %w", vote.PollID, vote.UserID, err)
	}
	return nil
}

func (s *VoteService) countVotes(ctx context.Context, poll domain.Poll) (domain.TallyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	tally, err := s.storage.CountVotes(ctx, poll.ID)
	if err != nil {
		return domain.TallyResult{}, fmt.Errorf("aggregate poll %s: %w", poll.ID, err)
	}
	tally.Question = poll.Question
	return tally, nil
}

func (s *VoteService) publishTally(ctx context.Context, tally domain.TallyResult) error {
	payload, err := event.Marshal(event.FromTally(tally))
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}

	notification := domain.Notification{Broadcast: true, Payload: payload}
	if s.audience != nil {
		notification = domain.Notification{
			Broadcast:  false,
			Recipients: s.audience(),
			Payload:    payload,
		}
	}
	return s.bridge.Publish(ctx, notification)
}
