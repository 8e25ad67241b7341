package domain

// Poll is a question with a fixed, ordered set of options.
// Immutable once loaded; creation and editing happen outside this core.
type Poll struct {
	ID       string
	Question string
	Options  []Option
}

// Option belongs to exactly one poll.
type Option struct {
	ID     string
	PollID string
	Label  string
}

// HasOption reports whether the given option belongs to this poll.
func (p Poll) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
