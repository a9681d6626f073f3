// Package console implements terminal runners for storyflow programs.
//
// Command kinds:
//
//	text    params: text          prints the interpolated line, waits one tick
//	choice  params: options       prints numbered options, jumps to the pick
//	jump    params: target, call  jumps to a block, returning when call is true
//	return  params: value         returns from the current block
//	set     params: code          runs a Lua statement
//	if      params: cond, then, else
//	                              pushes the command ids of the taken branch
//	                              (list the continuation too; flow falls through
//	                              after the last listed id)
//	wait    params: ticks         waits a number of ticks
//
// Options are objects with text, target and an optional if condition.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/storyflow/flow"
	"github.com/dshills/storyflow/flow/script"
)

// Console owns the terminal side of a playthrough and acts as the flow.Host.
type Console struct {
	out    io.Writer
	lines  chan string
	scope  *script.LuaScope
	game   *flow.Context
	interp *flow.Interpreter
	logger *slog.Logger

	eof      atomic.Bool
	awaiting atomic.Bool

	mu      sync.Mutex
	waits   map[string]int
	shown   map[string]bool
	offered map[string][]option
}

// New creates a Console reading player input from in. Input is read on a
// separate goroutine so ticks never block on the terminal.
func New(in io.Reader, out io.Writer, scope *script.LuaScope, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		out:     out,
		lines:   make(chan string, 16),
		scope:   scope,
		logger:  logger,
		waits:   make(map[string]int),
		shown:   make(map[string]bool),
		offered: make(map[string][]option),
	}
	c.game = flow.NewContext(c)
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- strings.TrimSpace(sc.Text())
	}
	c.eof.Store(true)
	close(c.lines)
}

// InputClosed reports whether the player input reached EOF.
func (c *Console) InputClosed() bool {
	return c.eof.Load()
}

// AwaitingInput reports whether a choice is waiting for the player.
func (c *Console) AwaitingInput() bool {
	return c.awaiting.Load()
}

// Game returns the context to pass to flow.New.
func (c *Console) Game() *flow.Context {
	return c.game
}

// Attach binds the interpreter, used by the return runner.
func (c *Console) Attach(i *flow.Interpreter) {
	c.interp = i
}

// Register adds every console runner to reg.
func (c *Console) Register(reg *flow.Registry) error {
	for kind, r := range map[string]flow.Runner{
		"text":   textRunner{c: c},
		"choice": choiceRunner{c: c},
		"jump":   jumpRunner{},
		"return": returnRunner{c: c},
		"set":    setRunner{c: c},
		"if":     ifRunner{c: c},
		"wait":   waitRunner{c: c},
	} {
		if err := reg.Register(kind, r); err != nil {
			return fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return nil
}

// Checkpoint implements flow.Host.
func (c *Console) Checkpoint(id string) {
	c.logger.Debug("checkpoint", "command", id)
}

// Restore implements flow.Host. The console keeps no state of its own
// beyond the Lua scope, which the interpreter already rebuilt.
func (c *Console) Restore(context.Context) <-chan error {
	fmt.Fprintln(c.out, "-- restored --")
	ch := make(chan error)
	close(ch)
	return ch
}

func (c *Console) live() bool {
	return !c.game.Simulating
}

func (c *Console) printf(format string, args ...any) {
	if c.live() {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *Console) interpolate(cmd *flow.Command, text string) string {
	s, err := c.scope.Interpolate(text)
	if err != nil {
		c.logger.Warn("interpolation failed", "command", cmd.ID, "error", err)
		return text
	}
	return s
}

// intParam reads a numeric parameter decoded from JSON, YAML or HCL.
func intParam(cmd *flow.Command, name string, def int) int {
	switch v := cmd.Params[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// idsParam reads a list of command ids.
func idsParam(cmd *flow.Command, name string) []string {
	switch v := cmd.Params[name].(type) {
	case []string:
		return v
	case []any:
		ids := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	case string:
		return []string{v}
	}
	return nil
}

type option struct {
	text   string
	target string
}

func (c *Console) options(cmd *flow.Command) []option {
	raw, _ := cmd.Params["options"].([]any)
	var opts []option
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if cond, ok := m["if"].(string); ok && cond != "" {
			pass, err := c.scope.EvalBool(cond)
			if err != nil {
				c.logger.Warn("option condition failed", "command", cmd.ID, "error", err)
			}
			if !pass {
				continue
			}
		}
		text, _ := m["text"].(string)
		target, _ := m["target"].(string)
		opts = append(opts, option{text: c.interpolate(cmd, text), target: target})
	}
	return opts
}
