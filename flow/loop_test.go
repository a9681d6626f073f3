package flow

import (
	"reflect"
	"testing"
	"time"

	"github.com/dshills/storyflow/flow/emit"
)

func TestUpdate_PlaysThroughStory(t *testing.T) {
	f := newFixture(t)
	host := &fakeHost{}
	i := newInterp(t, storyBlocks(), f.reg, NewContext(host))
	startAt(t, i, "intro", 0)

	i.Update(0)
	if !reflect.DeepEqual(f.text.executed, []string{"intro.0"}) {
		t.Fatalf("tick 1: expected intro.0 executed, got %v", f.text.executed)
	}
	if got := cursorIndex(t, i, "intro"); got != 0 {
		t.Errorf("tick 1: live text should wait, cursor at %d", got)
	}

	i.Update(0)
	i.Update(0)
	if i.ActiveBlock() != "choice" {
		t.Fatalf("expected choice active after intro, got %s", i.ActiveBlock())
	}
	intro, _ := i.BlockState("intro")
	if !intro.Finished {
		t.Errorf("expected intro finished, got %+v", intro)
	}

	tickUntil(t, i, 5, func() bool { return len(f.choice.executed) == 1 })
	if i.Checkpoint() != "choice.1" {
		t.Errorf("expected checkpoint choice.1, got %s", i.Checkpoint())
	}

	for n := 0; n < 3; n++ {
		i.Update(0)
	}
	if i.ActiveBlock() != "choice" || cursorIndex(t, i, "choice") != 1 {
		t.Fatalf("expected to wait at the choice, got %s at %d", i.ActiveBlock(), cursorIndex(t, i, "choice"))
	}

	f.choice.pick = "ending"
	i.Update(0)
	if i.ActiveBlock() != "ending" {
		t.Fatalf("expected ending after choice, got %s", i.ActiveBlock())
	}
	choice, _ := i.BlockState("choice")
	if choice.Status() != StatusStopped {
		t.Errorf("expected choice stopped by jump, got %s", choice.Status())
	}

	want := []string{"intro.0", "intro.1", "choice.0", "choice.1"}
	if !reflect.DeepEqual(host.checkpoints, want) {
		t.Errorf("expected checkpoints %v, got %v", want, host.checkpoints)
	}
}

func TestRunCommands_JumpStackVisitedBeforeNextIndex(t *testing.T) {
	f := newFixture(t)
	i := newInterp(t, []*Block{
		{ID: "P", Commands: []*Command{
			{ID: "p0", Kind: "push", Params: map[string]any{"ids": []string{"p3", "p1"}}},
			{ID: "p1", Kind: "mark"},
			{ID: "p2", Kind: "mark"},
			{ID: "p3", Kind: "mark"},
		}},
		{ID: "Q", Commands: []*Command{{ID: "q0", Kind: "mark"}}},
	}, f.reg, nil)
	startAt(t, i, "P", 0)

	if status, ok := i.UpdateBlock("P"); !ok || status != RunFinished {
		t.Fatalf("expected P to finish in one call, got %s %v", status, ok)
	}
	if !reflect.DeepEqual(f.mark.executed, []string{"p1", "p3"}) {
		t.Errorf("expected p1 then p3, got %v", f.mark.executed)
	}
	if i.ActiveBlock() != "Q" {
		t.Errorf("expected Q entered, got %s", i.ActiveBlock())
	}
}

func TestRunCommands_JumpStackIgnoresForeignCommands(t *testing.T) {
	f := newFixture(t)
	i := newInterp(t, []*Block{
		{ID: "P", Commands: []*Command{
			{ID: "p0", Kind: "push", Params: map[string]any{"ids": []string{"q0"}}},
			{ID: "p1", Kind: "mark"},
		}},
		{ID: "Q", Commands: []*Command{{ID: "q0", Kind: "mark"}}},
	}, f.reg, nil)
	startAt(t, i, "P", 0)

	i.UpdateBlock("P")
	if !reflect.DeepEqual(f.mark.executed, []string{"p1"}) {
		t.Errorf("expected foreign entry dropped, got %v", f.mark.executed)
	}
}

func TestRunCommands_MissingRunnerIsNoOp(t *testing.T) {
	f := newFixture(t)
	i := newInterp(t, []*Block{
		{ID: "A", Commands: []*Command{
			{ID: "u0", Kind: "unregistered"},
			{ID: "m1", Kind: "mark"},
		}},
	}, f.reg, nil)
	startAt(t, i, "A", 0)

	i.Update(0)
	if !reflect.DeepEqual(f.mark.executed, []string{"m1"}) {
		t.Errorf("expected m1 executed after no-op, got %v", f.mark.executed)
	}
	if i.Visits("u0") != 1 {
		t.Errorf("expected no-op command still visited, got %d", i.Visits("u0"))
	}
	if i.Checkpoint() != "u0" {
		t.Errorf("expected first command to be a savepoint, got %q", i.Checkpoint())
	}
}

func TestRunCommands_IterationGuard(t *testing.T) {
	f := newFixture(t)
	cmds := make([]*Command, 5)
	for n := range cmds {
		cmds[n] = &Command{ID: "m" + string(rune('0'+n)), Kind: "mark"}
	}
	i := newInterp(t, []*Block{{ID: "A", Commands: cmds}}, f.reg, nil, WithMaxIterations(3))
	startAt(t, i, "A", 0)

	if status := i.RunCommands("A"); status != RunRunning {
		t.Errorf("expected running at guard, got %s", status)
	}
	if len(f.mark.executed) != 3 {
		t.Errorf("expected 3 commands before the guard, got %v", f.mark.executed)
	}
	if got := cursorIndex(t, i, "A"); got != 3 {
		t.Errorf("expected cursor 3, got %d", got)
	}
}

func TestRunCommands_CallAndReturn(t *testing.T) {
	f := newFixture(t)
	i := newInterp(t, []*Block{
		{ID: "A", Commands: []*Command{
			{ID: "a0", Kind: "mark"},
			{ID: "a1", Kind: "call", Params: map[string]any{"target": "B", "call": true}},
			{ID: "a2", Kind: "mark"},
		}},
		{ID: "B", Commands: []*Command{{ID: "b0", Kind: "mark"}}},
	}, f.reg, nil)
	startAt(t, i, "A", 0)

	i.Update(0)
	if i.ActiveBlock() != "B" {
		t.Fatalf("expected B after call, got %s", i.ActiveBlock())
	}
	i.Update(0)
	if i.ActiveBlock() != "A" || cursorIndex(t, i, "A") != 2 {
		t.Fatalf("expected return to A at 2, got %s at %d", i.ActiveBlock(), cursorIndex(t, i, "A"))
	}
	i.Update(0)
	if want := []string{"a0", "b0", "a2"}; !reflect.DeepEqual(f.mark.executed, want) {
		t.Errorf("expected %v, got %v", want, f.mark.executed)
	}
}

func TestRunCommands_UnknownJumpTargetContinues(t *testing.T) {
	f := newFixture(t)
	i := newInterp(t, []*Block{
		{ID: "A", Commands: []*Command{
			{ID: "a0", Kind: "call", Params: map[string]any{"target": "nowhere"}},
			{ID: "a1", Kind: "mark"},
		}},
	}, f.reg, nil)
	startAt(t, i, "A", 0)

	i.Update(0)
	if !reflect.DeepEqual(f.mark.executed, []string{"a1"}) {
		t.Errorf("expected a1 after failed jump, got %v", f.mark.executed)
	}
}

func TestUpdate_CallsOnUpdate(t *testing.T) {
	reg := NewRegistry()
	r := &tickRunner{}
	if err := reg.Register("tick", r); err != nil {
		t.Fatal(err)
	}
	i := newInterp(t, storyBlocks(), reg, nil)
	startAt(t, i, "intro", 0)

	i.Update(16 * time.Millisecond)
	i.Update(16 * time.Millisecond)
	if r.total != 32*time.Millisecond {
		t.Errorf("expected 32ms of updates, got %s", r.total)
	}
	if i.Tick() != 2 {
		t.Errorf("expected tick 2, got %d", i.Tick())
	}
}

func TestTransitions_EmittedInOrder(t *testing.T) {
	f := newFixture(t)
	emitter := emit.NewBufferedEmitter()
	i := newInterp(t, storyBlocks(), f.reg, nil, WithEmitter(emitter), WithSession("play"))
	startAt(t, i, "intro", 0)
	i.Update(0)

	msgs := emitter.Messages("play")
	want := []string{"load", "enter", "execute", "checkpoint"}
	if len(msgs) < len(want) || !reflect.DeepEqual(msgs[:len(want)], want) {
		t.Fatalf("expected %v, got %v", want, msgs)
	}

	cps := emitter.GetHistoryWithFilter("play", emit.HistoryFilter{Msg: "checkpoint"})
	if len(cps) != 1 || cps[0].CommandID != "intro.0" || cps[0].Tick != 1 {
		t.Errorf("unexpected checkpoint events %+v", cps)
	}
}

type tickRunner struct {
	BaseRunner
	total time.Duration
}

func (r *tickRunner) OnUpdate(dt time.Duration) { r.total += dt }
