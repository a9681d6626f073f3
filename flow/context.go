package flow

import "context"

// Host is implemented by the game layer that owns side effects such as
// audio, visuals and UI.
type Host interface {
	// Checkpoint is called whenever a live savepoint is reached.
	Checkpoint(id string)

	// Restore rebuilds all host-owned state to match the interpreter's
	// current variables and visit counts. The returned channel receives at
	// most one value and is then closed; a nil error means success.
	Restore(ctx context.Context) <-chan error
}

// Context is the shared state between the interpreter and its
// collaborators.
//
// The interpreter writes Simulating and Transitions; collaborators read
// them to suppress side effects during fast-forward. Host is read-only for
// the interpreter.
type Context struct {
	// Simulating is true while the interpreter fast-forwards through
	// already-visited flow.
	Simulating bool

	// Transitions enables visual transition effects. It is switched off
	// while simulating.
	Transitions bool

	// Host receives checkpoint and restore calls. May be nil.
	Host Host
}

// NewContext creates a Context with transitions enabled.
func NewContext(host Host) *Context {
	return &Context{Transitions: true, Host: host}
}

// closedRestore is returned when no host is configured.
func closedRestore() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}
