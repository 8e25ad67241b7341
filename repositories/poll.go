package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"livepoll/domain"
	apperrors "livepoll/errors"
)

// PollRepository is the single owner of the Vote write path.
type PollRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewPollRepository(db *gorm.DB, log *slog.Logger) *PollRepository {
	return &PollRepository{db: db, log: log}
}

// Migrate creates the schema for tests and development setups.
// Production migrations live outside this core.
func (r *PollRepository) Migrate() error {
	return r.db.AutoMigrate(&userRow{}, &pollRow{}, &optionRow{}, &voteRow{})
}

func (r *PollRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, fmt.Errorf("user %s: %w", userID, apperrors.ErrUnknownUser)
		}
		return domain.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return domain.User{ID: row.ID, Name: row.Name}, nil
}

func (r *PollRepository) GetPoll(ctx context.Context, pollID string) (domain.Poll, error) {
	var row pollRow
	err := r.db.WithContext(ctx).Where("id = ?", pollID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Poll{}, fmt.Errorf("poll %s: %w", pollID, apperrors.ErrPollNotFound)
		}
		return domain.Poll{}, fmt.Errorf("load poll %s: %w", pollID, err)
	}

	var options []optionRow
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("id").
		Find(&options).Error; err != nil {
		return domain.Poll{}, fmt.Errorf("load options of poll %s: %w", pollID, err)
	}

	return domain.Poll{
		ID:       row.ID,
		Question: row.Question,
		Options: lo.Map(options, func(o optionRow, _ int) domain.Option {
			return o.toDomain()
		}),
	}, nil
}

// InsertVote writes exactly one row per (poll, user). The uniqueness
// constraint is enforced by the database, not application locking, so
// two attempts for the same user are serialized by the index itself
// while distinct users proceed without contention.
func (r *PollRepository) InsertVote(ctx context.Context, vote domain.Vote) error {
	err := r.db.WithContext(ctx).Create(lo.ToPtr(voteRowFromDomain(vote))).Error
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyVoted
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// CountVotes aggregates per-option counts for a poll. Options with no
// votes still appear with a zero total.
func (r *PollRepository) CountVotes(ctx context.Context, pollID string) (domain.TallyResult, error) {
	type countRow struct {
		Option string
		Total  int64
	}

	var rows []countRow
	err := r.db.WithContext(ctx).
		Table("options").
		Select(`options.option AS option, COUNT(votes.id) AS total`).
		Joins("LEFT JOIN votes ON votes.option_id = options.id").
		Where("options.poll_id = ?", pollID).
		Group("options.id, options.option").
		Order("options.id").
		Scan(&rows).Error
	if err != nil {
		return domain.TallyResult{}, fmt.Errorf("count votes of poll %s: %w", pollID, err)
	}

	return domain.TallyResult{
		PollID: pollID,
		Votes: lo.Map(rows, func(c countRow, _ int) domain.OptionCount {
			return domain.OptionCount{Option: c.Option, Total: c.Total}
		}),
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
