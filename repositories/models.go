package repositories

import (
	"time"

	"livepoll/domain"
)

type userRow struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (userRow) TableName() string { return "users" }

type pollRow struct {
	ID       string `gorm:"column:id;primaryKey"`
	Question string `gorm:"column:question"`
}

func (pollRow) TableName() string { return "polls" }

type optionRow struct {
	ID     string `gorm:"column:id;primaryKey"`
	PollID string `gorm:"column:poll_id;index"`
	Label  string `gorm:"column:option"`
}

func (optionRow) TableName() string { return "options" }

// voteRow carries the uniqueness constraint that makes a second vote
// by the same user on the same poll a constraint violation instead of
// a lost update, even across processes.
type voteRow struct {
	ID       string    `gorm:"column:id;primaryKey"`
	PollID   string    `gorm:"column:poll_id;uniqueIndex:idx_votes_poll_user"`
	OptionID string    `gorm:"column:option_id;index"`
	UserID   string    `gorm:"column:user_id;uniqueIndex:idx_votes_poll_user"`
	CastAt   time.Time `gorm:"column:created_at"`
}

func (voteRow) TableName() string { return "votes" }

func voteRowFromDomain(v domain.Vote) voteRow {
	return voteRow{
		ID:       v.ID.String(),
		PollID:   v.PollID,
		OptionID: v.OptionID,
		UserID:   v.UserID,
		CastAt:   v.CastAt,
	}
}

func (r optionRow) toDomain() domain.Option {
	return domain.Option{ID: r.ID, PollID: r.PollID, Label: r.Label}
}
