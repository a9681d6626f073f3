// Package emit provides the story event stream of the flow interpreter.
package emit

// Emitter receives observability events from the interpreter.
//
// Every block transition (load, enter, finish, return, checkpoint, ...)
// produces one Event. Implementations decide where the events go:
//   - Logs: LogEmitter writes text or JSON lines
//   - Tracing: OTelEmitter turns each event into a span
//   - Tests and tooling: BufferedEmitter keeps a queryable history
//   - Nowhere: NullEmitter
//
// The interpreter is single-threaded, but emitters may be shared between
// interpreters and must be safe for concurrent use.
type Emitter interface {
	// Emit delivers one event. Emit must not block the tick for long and
	// must not panic.
	Emit(event Event)
}

// Multi fans events out to several emitters in order.
type Multi []Emitter

// Emit forwards the event to every non-nil emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
