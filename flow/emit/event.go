package emit

// Event describes one interpreter transition.
//
// Common Meta keys:
//   - "command_index": cursor index inside the block
//   - "return_block", "return_command": call linkage
//   - "checkpoint": savepoint id
//   - "simulating": whether the transition happened during fast-forward
//   - "error": error text for failed restores or saves
type Event struct {
	// SessionID identifies the playthrough that emitted this event.
	SessionID string

	// Tick is the update count at which the event happened. Zero for events
	// emitted before the first Update.
	Tick int

	// BlockID is the block the transition applies to.
	BlockID string

	// CommandID is set for command-level events such as checkpoints.
	CommandID string

	// Msg is the transition name, e.g. "enter", "finish", "checkpoint".
	Msg string

	// Meta carries event-specific data.
	Meta map[string]interface{}
}
