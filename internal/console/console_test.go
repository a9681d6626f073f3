package console

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dshills/storyflow/flow"
	"github.com/dshills/storyflow/flow/script"
)

func program() []*flow.Block {
	return []*flow.Block{
		{ID: "start", Commands: []*flow.Command{
			{ID: "s.0", Kind: "set", Params: map[string]any{"code": "gold = 5"}},
			{ID: "s.1", Kind: "text", Params: map[string]any{"text": "Gold: {gold}"}},
			{ID: "s.2", Kind: "if", Params: map[string]any{
				"cond": "gold > 3",
				"then": []any{"s.3", "s.5"},
				"else": []any{"s.4", "s.5"},
			}},
			{ID: "s.3", Kind: "text", Params: map[string]any{"text": "rich"}},
			{ID: "s.4", Kind: "text", Params: map[string]any{"text": "poor"}},
			{ID: "s.5", Kind: "jump", Params: map[string]any{"target": "shop", "call": true}},
			{ID: "s.6", Kind: "choice", Params: map[string]any{"options": []any{
				map[string]any{"text": "Leave", "target": "end"},
				map[string]any{"text": "Secret", "target": "vault", "if": "false"},
			}}},
		}},
		{ID: "shop", Commands: []*flow.Command{
			{ID: "shop.0", Kind: "text", Params: map[string]any{"text": "Welcome"}},
			{ID: "shop.1", Kind: "wait", Params: map[string]any{"ticks": float64(2)}},
			{ID: "shop.2", Kind: "return", Params: map[string]any{"value": "'sword'"}},
		}},
		{ID: "vault", Commands: []*flow.Command{
			{ID: "vault.0", Kind: "text", Params: map[string]any{"text": "gold everywhere"}},
		}},
		{ID: "end", Commands: []*flow.Command{
			{ID: "end.0", Kind: "text", Params: map[string]any{"text": "Bye, you got a {returned.shop}"}},
		}},
	}
}

func play(t *testing.T, input io.Reader) (string, *Console, *flow.Interpreter) {
	t.Helper()
	var out bytes.Buffer
	scope := script.NewLuaScope()
	c := New(input, &out, scope, nil)
	reg := flow.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	i, err := flow.New(flow.Build(program()), reg, c.Game(), flow.WithEvaluator(scope), flow.WithSeed("console"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Attach(i)

	loc, _ := i.Location("start", 0)
	if err := i.Start(t.Context(), loc); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for n := 0; n < 200 && i.Running(); n++ {
		if c.AwaitingInput() {
			if c.InputClosed() {
				break
			}
			// Give the input goroutine a chance to deliver the next line.
			time.Sleep(time.Millisecond)
		}
		i.Update(0)
	}
	return out.String(), c, i
}

func TestConsole_Playthrough(t *testing.T) {
	out, _, i := play(t, strings.NewReader("3\n1\n"))

	if i.Running() {
		t.Fatalf("expected story to end, output:\n%s", out)
	}

	want := []string{"Gold: 5", "rich", "Welcome", "  1) Leave", "pick 1-1", "Bye, you got a sword"}
	rest := out
	for _, w := range want {
		n := strings.Index(rest, w)
		if n < 0 {
			t.Fatalf("expected %q in order, output:\n%s", w, out)
		}
		rest = rest[n+len(w):]
	}
	for _, unwanted := range []string{"poor", "Secret", "gold everywhere"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("unexpected %q in output:\n%s", unwanted, out)
		}
	}
}

func TestConsole_StopsWaitingOnEOF(t *testing.T) {
	out, c, i := play(t, strings.NewReader(""))

	if !c.InputClosed() || !c.AwaitingInput() {
		t.Fatalf("expected to be waiting on closed input, output:\n%s", out)
	}
	if !i.Running() {
		t.Error("expected story still in progress")
	}
	if i.Checkpoint() != "s.6" {
		t.Errorf("expected checkpoint at the choice, got %q", i.Checkpoint())
	}
}

func TestConsole_SilentWhileSimulating(t *testing.T) {
	var out bytes.Buffer
	scope := script.NewLuaScope()
	c := New(strings.NewReader(""), &out, scope, nil)
	reg := flow.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatal(err)
	}
	i, err := flow.New(flow.Build(program()), reg, c.Game(), flow.WithEvaluator(scope), flow.WithSeed("console"))
	if err != nil {
		t.Fatal(err)
	}
	c.Attach(i)

	loc, _ := i.Location("start", 6)
	if err := i.Start(t.Context(), loc); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	i.Update(0)

	if i.Simulating() {
		t.Fatal("expected simulation to stop at the choice")
	}
	text := out.String()
	if strings.Contains(text, "Gold") || strings.Contains(text, "Welcome") {
		t.Errorf("expected no output during fast-forward, got:\n%s", text)
	}
	if !strings.Contains(text, "-- restored --") {
		t.Errorf("expected restore notice, got:\n%s", text)
	}
	if v, _ := scope.Eval("gold"); v != 5 {
		t.Errorf("expected set statements replayed, gold = %v", v)
	}
	if v, _ := scope.Eval("returned.shop"); v != "sword" {
		t.Errorf("expected call replayed, returned.shop = %v", v)
	}
	c.mu.Lock()
	pending := len(c.shown)
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("expected skipped lines to be forgotten, %d still tracked", pending)
	}
}

func TestParams(t *testing.T) {
	cmd := &flow.Command{Params: map[string]any{"a": float64(3), "b": "7", "ids": []any{"x", 1, "y"}}}
	if intParam(cmd, "a", 0) != 3 || intParam(cmd, "b", 0) != 7 || intParam(cmd, "c", 9) != 9 {
		t.Error("unexpected intParam results")
	}
	if got := idsParam(cmd, "ids"); len(got) != 2 || got[1] != "y" {
		t.Errorf("unexpected ids %v", got)
	}
}
