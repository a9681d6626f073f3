package flow

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// PollStatus classifies what a runner reports when polled.
type PollStatus int

const (
	// PollWaiting means the command is still running. While simulating the
	// interpreter does not wait for it and treats it as done.
	PollWaiting PollStatus = iota

	// PollBlocked means the command must not be skipped, even while
	// simulating. Used for commands that wait on external input.
	PollBlocked

	// PollDone means the command has finished.
	PollDone
)

// Poll is the result of Runner.IsFinished.
//
// A non-empty Jump asks the interpreter to jump to that block. When Call is
// set the jump records a return point just after the current command.
type Poll struct {
	Status PollStatus
	Jump   string
	Call   bool
}

// Waiting returns a Poll for a command that may be skipped while simulating.
func Waiting() Poll { return Poll{Status: PollWaiting} }

// Blocked returns a Poll for a command that must wait even while simulating.
func Blocked() Poll { return Poll{Status: PollBlocked} }

// Done returns a Poll for a finished command.
func Done() Poll { return Poll{Status: PollDone} }

// JumpTo returns a Poll that jumps to blockID without returning.
func JumpTo(blockID string) Poll { return Poll{Status: PollDone, Jump: blockID} }

// Call returns a Poll that jumps to blockID and returns after it finishes.
func Call(blockID string) Poll { return Poll{Status: PollDone, Jump: blockID, Call: true} }

// Runner executes one command kind. Runners are collaborators: the
// interpreter only sequences them.
type Runner interface {
	// IsSavepoint reports whether the command is safe to persist as a
	// resume point.
	IsSavepoint(cmd *Command) bool

	// IsChoicepoint reports whether the command waits for player input.
	IsChoicepoint(cmd *Command) bool

	// OnExecute starts the command. The returned command ids are pushed onto
	// the owning block's jump stack in order.
	OnExecute(cmd *Command) []string

	// IsFinished is polled every tick while the command executes.
	IsFinished(cmd *Command) Poll

	OnFinished(cmd *Command)
	OnPreview(cmd *Command)
	OnInit()
	OnDestroy()
	OnUpdate(dt time.Duration)
}

// BaseRunner implements every Runner method as a no-op that finishes
// immediately. Embed it and override what a kind needs.
type BaseRunner struct{}

func (BaseRunner) IsSavepoint(*Command) bool { return false }
func (BaseRunner) IsChoicepoint(*Command) bool { return false }
func (BaseRunner) OnExecute(*Command) []string { return nil }
func (BaseRunner) IsFinished(*Command) Poll { return Done() }
func (BaseRunner) OnFinished(*Command) {}
func (BaseRunner) OnPreview(*Command) {}
func (BaseRunner) OnInit() {}
func (BaseRunner) OnDestroy() {}
func (BaseRunner) OnUpdate(time.Duration) {}

// Registry maps command kinds to runners.
//
// Registration happens before the interpreter is created; the interpreter
// resolves every command's runner once at construction.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
	ordered []Runner // distinct runners in kind order, rebuilt after Register
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Register binds kind to r. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, runner Runner) error {
	if kind == "" {
		return &FlowError{Message: "runner kind cannot be empty", Code: "INVALID_RUNNER"}
	}
	if runner == nil {
		return &FlowError{Message: "runner cannot be nil", Code: "INVALID_RUNNER"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runners[kind]; exists {
		return &FlowError{
			Message: fmt.Sprintf("duplicate runner kind: %s", kind),
			Code:    "DUPLICATE_RUNNER",
		}
	}
	r.runners[kind] = runner
	r.ordered = nil
	return nil
}

// Lookup returns the runner for kind.
func (r *Registry) Lookup(kind string) (Runner, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[kind]
	return runner, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.runners))
	for k := range r.runners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// each calls fn once for every distinct runner in kind order. A runner
// registered under several kinds is called for its first kind only.
func (r *Registry) each(fn func(Runner)) {
	if r == nil {
		return
	}
	for _, runner := range r.distinct() {
		fn(runner)
	}
}

func (r *Registry) distinct() []Runner {
	r.mu.RLock()
	ordered := r.ordered
	r.mu.RUnlock()
	if ordered != nil {
		return ordered
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ordered != nil {
		return r.ordered
	}
	kinds := make([]string, 0, len(r.runners))
	for k := range r.runners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	seen := make(map[Runner]bool)
	ordered = make([]Runner, 0, len(kinds))
	for _, k := range kinds {
		runner := r.runners[k]
		// Non-comparable runners cannot be map keys; they are always distinct.
		if reflect.TypeOf(runner).Comparable() {
			if seen[runner] {
				continue
			}
			seen[runner] = true
		}
		ordered = append(ordered, runner)
	}
	r.ordered = ordered
	return ordered
}

// Init calls OnInit on every registered runner.
func (r *Registry) Init() {
	r.each(func(runner Runner) { runner.OnInit() })
}
