package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "livepoll/errors"
)

// FrameTypeVote is the only client-originated command.
const FrameTypeVote = "vote"

// Frame is an inbound wire message. Decoding is strict: anything that
// is not a well-formed, complete variant is rejected before it reaches
// the coordinator.
type Frame struct {
	Type     string `json:"type" validate:"required,oneof=vote"`
	PollID   string `json:"poll_id" validate:"required"`
	OptionID string `json:"option_id" validate:"required"`
}

var validate = validator.New()

// DecodeFrame parses and validates one inbound frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	if err := validate.Struct(f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", apperrors.ErrSerialization, err)
	}
	return f, nil
}
