package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrNotConnected  = fmt.Errorf("recipient not connected")
	ErrAlreadyVoted  = fmt.Errorf("vote already cast for this poll")
	ErrInvalidOption = fmt.Errorf("option does not belong to poll")
	ErrPollNotFound  = fmt.Errorf("poll not found")
	ErrUnknownUser   = fmt.Errorf("unknown user")
	ErrSerialization = fmt.Errorf("payload is not serializable")
	ErrTransport     = fmt.Errorf("queue transport failure")
)
