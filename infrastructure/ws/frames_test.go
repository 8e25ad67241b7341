package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "livepoll/errors"
)

func TestDecodeFrame_Vote(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type":"vote","poll_id":"p1","option_id":"o2"}`))

	req.NoError(err)
	req.Equal(FrameTypeVote, frame.Type)
	req.Equal("p1", frame.PollID)
	req.Equal("o2", frame.OptionID)
}

func TestDecodeFrame_Malformed_JSON(t *testing.T) {
	req := require.New(t)

	_, err := DecodeFrame([]byte(`{"type":`))

	req.ErrorIs(err, apperrors.ErrSerialization)
}

func TestDecodeFrame_Missing_Fields(t *testing.T) {
	req := require.New(t)

	_, err := DecodeFrame([]byte(`{"type":"vote","poll_id":"p1"}`))

	req.ErrorIs(err, apperrors.ErrSerialization)
}

func TestDecodeFrame_Unknown_Type(t *testing.T) {
	req := require.New(t)

	_, err := DecodeFrame([]byte(`{"type":"shout","poll_id":"p1","option_id":"o1"}`))

	req.ErrorIs(err, apperrors.ErrSerialization)
}
