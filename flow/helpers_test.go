package flow

import (
	"context"
	"testing"
)

// textRunner shows a line: a savepoint that waits one tick when live.
type textRunner struct {
	BaseRunner
	executed []string
	polled   map[string]bool
}

func newTextRunner() *textRunner {
	return &textRunner{polled: make(map[string]bool)}
}

func (r *textRunner) IsSavepoint(*Command) bool { return true }

func (r *textRunner) OnExecute(cmd *Command) []string {
	r.executed = append(r.executed, cmd.ID)
	r.polled[cmd.ID] = false
	return nil
}

func (r *textRunner) IsFinished(cmd *Command) Poll {
	if !r.polled[cmd.ID] {
		r.polled[cmd.ID] = true
		return Waiting()
	}
	return Done()
}

// choiceRunner blocks until pick is set, then jumps to it.
type choiceRunner struct {
	BaseRunner
	executed []string
	pick     string
}

func (r *choiceRunner) IsSavepoint(*Command) bool { return true }
func (r *choiceRunner) IsChoicepoint(*Command) bool { return true }

func (r *choiceRunner) OnExecute(cmd *Command) []string {
	r.executed = append(r.executed, cmd.ID)
	return nil
}

func (r *choiceRunner) IsFinished(*Command) Poll {
	if r.pick == "" {
		return Blocked()
	}
	target := r.pick
	r.pick = ""
	return JumpTo(target)
}

// markRunner finishes instantly and records the order of execution.
type markRunner struct {
	BaseRunner
	executed []string
}

func (r *markRunner) OnExecute(cmd *Command) []string {
	r.executed = append(r.executed, cmd.ID)
	return nil
}

// pushRunner pushes the ids in its "ids" param onto the jump stack.
type pushRunner struct {
	BaseRunner
}

func (pushRunner) OnExecute(cmd *Command) []string {
	ids, _ := cmd.Params["ids"].([]string)
	return ids
}

// callRunner jumps to its "target" param, returning afterwards when "call"
// is set.
type callRunner struct {
	BaseRunner
}

func (callRunner) IsFinished(cmd *Command) Poll {
	if call, _ := cmd.Params["call"].(bool); call {
		return Call(cmd.Param("target"))
	}
	return JumpTo(cmd.Param("target"))
}

// fakeHost records checkpoints and hands out restore channels.
type fakeHost struct {
	checkpoints []string
	restores    int
	pending     chan error
	hold        bool
}

func (h *fakeHost) Checkpoint(id string) {
	h.checkpoints = append(h.checkpoints, id)
}

func (h *fakeHost) Restore(context.Context) <-chan error {
	h.restores++
	ch := make(chan error, 1)
	if h.hold {
		h.pending = ch
		return ch
	}
	close(ch)
	return ch
}

type fixture struct {
	text   *textRunner
	choice *choiceRunner
	mark   *markRunner
	reg    *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		text:   newTextRunner(),
		choice: &choiceRunner{},
		mark:   &markRunner{},
		reg:    NewRegistry(),
	}
	for kind, r := range map[string]Runner{
		"text":   f.text,
		"choice": f.choice,
		"mark":   f.mark,
		"push":   pushRunner{},
		"call":   callRunner{},
	} {
		if err := f.reg.Register(kind, r); err != nil {
			t.Fatalf("Register(%s) failed: %v", kind, err)
		}
	}
	return f
}

// storyBlocks is the intro/choice/ending program.
func storyBlocks() []*Block {
	return []*Block{
		{ID: "intro", Commands: []*Command{
			{ID: "intro.0", Kind: "text"},
			{ID: "intro.1", Kind: "text"},
		}},
		{ID: "choice", Commands: []*Command{
			{ID: "choice.0", Kind: "text"},
			{ID: "choice.1", Kind: "choice"},
		}},
		{ID: "ending", Commands: []*Command{
			{ID: "ending.0", Kind: "text"},
		}},
	}
}

func newInterp(t *testing.T, blocks []*Block, reg *Registry, game *Context, opts ...Option) *Interpreter {
	t.Helper()
	opts = append([]Option{WithSeed("s1")}, opts...)
	i, err := New(Build(blocks), reg, game, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return i
}

func startAt(t *testing.T, i *Interpreter, blockID string, index int) {
	t.Helper()
	loc, ok := i.Location(blockID, index)
	if !ok {
		t.Fatalf("no location %s[%d]", blockID, index)
	}
	if err := i.Start(context.Background(), loc); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

// tickUntil updates until cond holds, failing after limit ticks.
func tickUntil(t *testing.T, i *Interpreter, limit int, cond func() bool) {
	t.Helper()
	for n := 0; n < limit; n++ {
		if cond() {
			return
		}
		i.Update(0)
	}
	if !cond() {
		t.Fatalf("condition not reached after %d ticks", limit)
	}
}

func cursorIndex(t *testing.T, i *Interpreter, blockID string) int {
	t.Helper()
	loc, ok := i.CurrentLocation(blockID)
	if !ok {
		t.Fatalf("no cursor for %s", blockID)
	}
	return loc.Command
}
