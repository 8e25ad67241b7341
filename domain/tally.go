package domain

// OptionCount is one line of a tally: the option label and how many
// votes it has collected so far.
type OptionCount struct {
	Option string `json:"option"`
	Total  int64  `json:"total"`
}

// TallyResult is a transient projection of the vote rows of one poll.
// It is recomputed on every accepted vote and never stored.
type TallyResult struct {
	PollID   string        `json:"poll_id"`
	Question string        `json:"question"`
	Votes    []OptionCount `json:"votes"`
}

// Sum returns the total number of votes across all options.
func (t TallyResult) Sum() int64 {
	var sum int64
	for _, v := range t.Votes {
		sum += v.Total
	}
	return sum
}
