// Package script provides a Lua-backed flow.Evaluator.
//
// Story programs use Lua expressions for conditions ("visits['cellar'] > 1"),
// statements ("gold = gold + 5") and inline text interpolation
// ("You have been here {visited} times."). The interpreter publishes visit
// counts and returned block values into the scope; reading the global
// visited variable is detected so the interpreter can decide whether the
// count must be persisted.
package script

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/dshills/storyflow/flow"
)

// ErrScript wraps Lua compile and runtime errors.
var ErrScript = errors.New("script error")

// LuaScope evaluates Lua in a single long-lived state. It is safe for
// concurrent use, but callers normally drive it from the interpreter's tick
// goroutine.
type LuaScope struct {
	mu       sync.Mutex
	state    *lua.State
	visited  any
	consumed bool
}

var _ flow.Evaluator = (*LuaScope)(nil)

// NewLuaScope creates a scope with the standard Lua libraries and empty
// visits and returned tables.
func NewLuaScope() *LuaScope {
	s := &LuaScope{state: lua.NewState()}
	l := s.state
	lua.OpenLibraries(l)

	for _, ns := range []string{flow.VisitsNamespace, flow.ReturnedNamespace} {
		l.NewTable()
		l.SetGlobal(ns)
	}

	// visited never lives in the global table itself, so every read and write
	// goes through these metamethods.
	l.PushGlobalTable()
	l.NewTable()
	l.PushGoFunction(s.index)
	l.SetField(-2, "__index")
	l.PushGoFunction(s.newIndex)
	l.SetField(-2, "__newindex")
	l.SetMetaTable(-2)
	l.Pop(1)

	return s
}

func (s *LuaScope) index(l *lua.State) int {
	if key, ok := l.ToString(2); ok && key == flow.VisitedVar {
		s.consumed = true
		pushValue(l, s.visited)
		return 1
	}
	l.PushNil()
	return 1
}

func (s *LuaScope) newIndex(l *lua.State) int {
	if key, ok := l.ToString(2); ok && key == flow.VisitedVar {
		s.visited = toValue(l, 3)
		return 0
	}
	l.PushValue(2)
	l.PushValue(3)
	l.RawSet(1)
	return 0
}

// Assign implements flow.Evaluator.
func (s *LuaScope) Assign(namespace, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.state
	if namespace == "" {
		if key == flow.VisitedVar {
			s.visited = value
			return
		}
		pushValue(l, value)
		l.SetGlobal(key)
		return
	}

	l.Global(namespace)
	if !l.IsTable(-1) {
		l.Pop(1)
		l.NewTable()
		l.PushValue(-1)
		l.SetGlobal(namespace)
	}
	pushValue(l, value)
	l.SetField(-2, key)
	l.Pop(1)
}

// VisitConsumed implements flow.Evaluator.
func (s *LuaScope) VisitConsumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.consumed
	s.consumed = false
	return c
}

// Eval evaluates a single Lua expression. Numbers with an integral value are
// returned as int, other numbers as float64, tables as map[string]any.
func (s *LuaScope) Eval(expr string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.run("return "+expr, 1); err != nil {
		return nil, err
	}
	v := toValue(s.state, -1)
	s.state.Pop(1)
	return v, nil
}

// EvalBool evaluates expr with Lua truthiness: only nil and false are false.
func (s *LuaScope) EvalBool(expr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.run("return "+expr, 1); err != nil {
		return false, err
	}
	b := s.state.ToBoolean(-1)
	s.state.Pop(1)
	return b, nil
}

// Exec runs Lua statements.
func (s *LuaScope) Exec(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(code, 0)
}

// Get reads a global variable.
func (s *LuaScope) Get(name string) (any, error) {
	return s.Eval(name)
}

// Interpolate replaces every {expression} in text with its value. "{{"
// and "}}" produce literal braces; any other unpaired brace is an error.
func (s *LuaScope) Interpolate(text string) (string, error) {
	var out strings.Builder
	for {
		at := strings.IndexAny(text, "{}")
		if at < 0 {
			out.WriteString(text)
			return out.String(), nil
		}
		out.WriteString(text[:at])
		brace := text[at]
		if at+1 < len(text) && text[at+1] == brace {
			out.WriteByte(brace)
			text = text[at+2:]
			continue
		}
		if brace == '}' {
			return "", fmt.Errorf("%w: unmatched '}' in %q", ErrScript, text)
		}
		end := strings.IndexByte(text[at:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unclosed '{' in %q", ErrScript, text)
		}
		v, err := s.Eval(text[at+1 : at+end])
		if err != nil {
			return "", err
		}
		if v != nil {
			fmt.Fprint(&out, v)
		}
		text = text[at+end+1:]
	}
}

func (s *LuaScope) run(code string, results int) error {
	l := s.state
	top := l.Top()
	if err := lua.LoadString(l, code); err != nil {
		l.SetTop(top)
		return fmt.Errorf("%w: compile %q: %v", ErrScript, code, err)
	}
	if err := l.ProtectedCall(0, results, 0); err != nil {
		l.SetTop(top)
		return fmt.Errorf("%w: run %q: %v", ErrScript, code, err)
	}
	return nil
}

func pushValue(l *lua.State, v any) {
	switch t := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(t)
	case int:
		l.PushInteger(t)
	case int64:
		l.PushNumber(float64(t))
	case float64:
		l.PushNumber(t)
	case string:
		l.PushString(t)
	case []string:
		l.NewTable()
		for n, e := range t {
			l.PushString(e)
			l.RawSetInt(-2, n+1)
		}
	case []any:
		l.NewTable()
		for n, e := range t {
			pushValue(l, e)
			l.RawSetInt(-2, n+1)
		}
	case map[string]any:
		l.NewTable()
		for k, e := range t {
			pushValue(l, e)
			l.SetField(-2, k)
		}
	default:
		l.PushString(fmt.Sprint(t))
	}
}

func toValue(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n)
		}
		return n
	case lua.TypeString:
		str, _ := l.ToString(idx)
		return str
	case lua.TypeTable:
		return toMap(l, idx)
	default:
		return nil
	}
}

func toMap(l *lua.State, idx int) map[string]any {
	idx = l.AbsIndex(idx)
	m := make(map[string]any)
	l.PushNil()
	for l.Next(idx) {
		// Converting a number key in place would confuse Next.
		var key string
		if l.TypeOf(-2) == lua.TypeNumber {
			n, _ := l.ToNumber(-2)
			key = fmt.Sprint(n)
		} else {
			key, _ = l.ToString(-2)
		}
		m[key] = toValue(l, -1)
		l.Pop(1)
	}
	return m
}
