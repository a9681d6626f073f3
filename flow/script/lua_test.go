package script

import (
	"errors"
	"testing"

	"github.com/dshills/storyflow/flow"
)

func TestLuaScope_EvalAndExec(t *testing.T) {
	s := NewLuaScope()

	if err := s.Exec("gold = 10; name = 'Ada'"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := s.Exec("gold = gold + 5"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}

	tests := []struct {
		expr string
		want any
	}{
		{"gold", 15},
		{"gold / 2", 7.5},
		{"name .. '!'", "Ada!"},
		{"gold > 10", true},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := s.Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %#v, want %#v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestLuaScope_Errors(t *testing.T) {
	s := NewLuaScope()
	if _, err := s.Eval("1 +"); !errors.Is(err, ErrScript) {
		t.Errorf("expected compile error wrapped in ErrScript, got %v", err)
	}
	if err := s.Exec("error('boom')"); !errors.Is(err, ErrScript) {
		t.Errorf("expected runtime error wrapped in ErrScript, got %v", err)
	}
	// The state stays usable after a failure.
	if v, err := s.Eval("1 + 1"); err != nil || v != 2 {
		t.Errorf("expected 2 after error, got %v, %v", v, err)
	}
}

func TestLuaScope_VisitedReadDetection(t *testing.T) {
	s := NewLuaScope()
	s.Assign("", flow.VisitedVar, 3)

	if _, err := s.Eval("1 + 1"); err != nil {
		t.Fatal(err)
	}
	if s.VisitConsumed() {
		t.Error("expected no consumption without reading visited")
	}

	v, err := s.Eval("visited")
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("expected visited = 3, got %v", v)
	}
	if !s.VisitConsumed() {
		t.Error("expected visited read to be detected")
	}
	if s.VisitConsumed() {
		t.Error("expected flag reset")
	}

	if err := s.Exec("visited = 9"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Eval("visited"); v != 9 {
		t.Errorf("expected script write to visited, got %v", v)
	}
}

func TestLuaScope_Namespaces(t *testing.T) {
	s := NewLuaScope()
	s.Assign(flow.VisitsNamespace, "cellar", 2)
	s.Assign(flow.ReturnedNamespace, "shop", "sword")
	s.Assign("flags", "door", true)

	ok, err := s.EvalBool("visits['cellar'] > 1 and returned.shop == 'sword' and flags.door")
	if err != nil {
		t.Fatalf("EvalBool failed: %v", err)
	}
	if !ok {
		t.Error("expected namespace lookups to succeed")
	}

	if ok, _ := s.EvalBool("visits['attic']"); ok {
		t.Error("expected nil to be false")
	}
}

func TestLuaScope_Tables(t *testing.T) {
	s := NewLuaScope()
	s.Assign("", "bag", map[string]any{"keys": 2, "items": []any{"rope", "lamp"}})

	v, err := s.Eval("bag")
	if err != nil {
		t.Fatal(err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["keys"] != 2 {
		t.Fatalf("expected table with keys=2, got %#v", v)
	}
	if n, _ := s.Eval("#bag.items"); n != 2 {
		t.Errorf("expected two items, got %v", n)
	}
}

func TestLuaScope_Interpolate(t *testing.T) {
	s := NewLuaScope()
	s.Assign("", flow.VisitedVar, 2)
	s.Assign("", "name", "Ada")

	got, err := s.Interpolate("{name}, you have been here {visited} times {{sic}}")
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if got != "Ada, you have been here 2 times {sic}" {
		t.Errorf("unexpected text %q", got)
	}
	if !s.VisitConsumed() {
		t.Error("expected interpolation of visited to be detected")
	}

	for _, text := range []string{"broken {name", "stray } brace", "{{name}"} {
		if _, err := s.Interpolate(text); !errors.Is(err, ErrScript) {
			t.Errorf("Interpolate(%q): expected ErrScript, got %v", text, err)
		}
	}

	got, err = s.Interpolate("}}{name}{{")
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if got != "}Ada{" {
		t.Errorf("expected escaped braces around the value, got %q", got)
	}
}

// storyRunner reads {visited} through the Lua scope while executing.
type storyRunner struct {
	flow.BaseRunner
	scope *LuaScope
	lines []string
}

func (r *storyRunner) OnExecute(cmd *flow.Command) []string {
	line, _ := r.scope.Interpolate(cmd.Param("text"))
	r.lines = append(r.lines, line)
	return nil
}

func TestLuaScope_WithInterpreter(t *testing.T) {
	scope := NewLuaScope()
	runner := &storyRunner{scope: scope}
	reg := flow.NewRegistry()
	if err := reg.Register("say", runner); err != nil {
		t.Fatal(err)
	}

	g := flow.Build([]*flow.Block{
		{ID: "hall", Commands: []*flow.Command{
			{ID: "hall.0", Kind: "say", Params: map[string]any{"text": "The hall."}},
			{ID: "hall.1", Kind: "say", Params: map[string]any{"text": "Visit {visited}."}},
		}},
	})
	i, err := flow.New(g, reg, nil, flow.WithEvaluator(scope), flow.WithSeed("lua"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	loc, _ := i.Location("hall", 0)
	if err := i.Start(t.Context(), loc); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	i.Update(0)

	if len(runner.lines) != 2 || runner.lines[1] != "Visit 1." {
		t.Fatalf("unexpected lines %v", runner.lines)
	}
	stored := i.StoredVisits()
	if stored["hall.1"] != 1 {
		t.Errorf("expected hall.1 persisted, got %v", stored)
	}
	if _, ok := stored["hall.0"]; ok {
		t.Errorf("expected hall.0 not persisted, got %v", stored)
	}
	if v, _ := scope.Eval("visits['hall']"); v != 1 {
		t.Errorf("expected visits.hall = 1, got %v", v)
	}
}
