package flow

import "errors"

// ErrUnknownBlock is returned when a block id does not exist in the graph.
var ErrUnknownBlock = errors.New("unknown block")

// ErrUnknownCommand is returned when a command id does not exist in the graph.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoReturnTarget is reported when a block returns without a recorded caller.
var ErrNoReturnTarget = errors.New("no return target recorded")

// ErrNoMoreBlocks is reported when flow continues past the last block.
var ErrNoMoreBlocks = errors.New("no more blocks")

// ErrNotStarted is returned when a save is requested before Start or Resume.
var ErrNotStarted = errors.New("interpreter not started")

// ErrNoStore is returned by persistence helpers when no store is configured.
var ErrNoStore = errors.New("no store configured")

// ErrNoCheckpoint is returned when a save is requested before any savepoint
// was reached.
var ErrNoCheckpoint = errors.New("no checkpoint reached")

// FlowError is a structured interpreter error.
type FlowError struct {
	Message string
	Code    string
	BlockID string
	Cause   error
}

func (e *FlowError) Error() string {
	msg := e.Message
	if e.BlockID != "" {
		msg = "block " + e.BlockID + ": " + msg
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FlowError) Unwrap() error {
	return e.Cause
}
