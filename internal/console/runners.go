package console

import (
	"strconv"

	"github.com/dshills/storyflow/flow"
)

type textRunner struct {
	flow.BaseRunner
	c *Console
}

func (textRunner) IsSavepoint(*flow.Command) bool { return true }

func (r textRunner) OnExecute(cmd *flow.Command) []string {
	r.c.printf("%s\n", r.c.interpolate(cmd, cmd.Param("text")))
	r.c.mu.Lock()
	r.c.shown[cmd.ID] = false
	r.c.mu.Unlock()
	return nil
}

// IsFinished keeps a line on screen for one tick.
func (r textRunner) IsFinished(cmd *flow.Command) flow.Poll {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if !r.c.shown[cmd.ID] {
		r.c.shown[cmd.ID] = true
		return flow.Waiting()
	}
	return flow.Done()
}

// OnFinished also runs for lines skipped while simulating.
func (r textRunner) OnFinished(cmd *flow.Command) {
	r.c.mu.Lock()
	delete(r.c.shown, cmd.ID)
	r.c.mu.Unlock()
}

type choiceRunner struct {
	flow.BaseRunner
	c *Console
}

func (choiceRunner) IsSavepoint(*flow.Command) bool   { return true }
func (choiceRunner) IsChoicepoint(*flow.Command) bool { return true }

func (r choiceRunner) OnExecute(cmd *flow.Command) []string {
	opts := r.c.options(cmd)
	r.c.mu.Lock()
	r.c.offered[cmd.ID] = opts
	r.c.mu.Unlock()

	if prompt := cmd.Param("text"); prompt != "" {
		r.c.printf("%s\n", r.c.interpolate(cmd, prompt))
	}
	for n, o := range opts {
		r.c.printf("  %d) %s\n", n+1, o.text)
	}
	return nil
}

func (r choiceRunner) IsFinished(cmd *flow.Command) flow.Poll {
	r.c.mu.Lock()
	opts := r.c.offered[cmd.ID]
	r.c.mu.Unlock()
	if len(opts) == 0 {
		return flow.Done()
	}

	var line string
	select {
	case l, ok := <-r.c.lines:
		if !ok {
			r.c.awaiting.Store(true)
			return flow.Blocked()
		}
		line = l
	default:
		r.c.awaiting.Store(true)
		return flow.Blocked()
	}
	r.c.awaiting.Store(false)

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(opts) {
		r.c.printf("pick 1-%d\n", len(opts))
		return flow.Blocked()
	}

	r.c.mu.Lock()
	delete(r.c.offered, cmd.ID)
	r.c.mu.Unlock()

	if target := opts[n-1].target; target != "" {
		return flow.JumpTo(target)
	}
	return flow.Done()
}

type jumpRunner struct {
	flow.BaseRunner
}

func (jumpRunner) IsFinished(cmd *flow.Command) flow.Poll {
	if call, _ := cmd.Params["call"].(bool); call {
		return flow.Call(cmd.Param("target"))
	}
	return flow.JumpTo(cmd.Param("target"))
}

type returnRunner struct {
	flow.BaseRunner
	c *Console
}

func (r returnRunner) OnExecute(cmd *flow.Command) []string {
	if r.c.interp == nil {
		return nil
	}
	var value any
	if expr := cmd.Param("value"); expr != "" {
		v, err := r.c.scope.Eval(expr)
		if err != nil {
			r.c.logger.Warn("return value failed", "command", cmd.ID, "error", err)
		}
		value = v
	}
	r.c.interp.ReturnFromBlock(cmd.Block, value)
	return nil
}

type setRunner struct {
	flow.BaseRunner
	c *Console
}

func (r setRunner) OnExecute(cmd *flow.Command) []string {
	if err := r.c.scope.Exec(cmd.Param("code")); err != nil {
		r.c.logger.Warn("set failed", "command", cmd.ID, "error", err)
	}
	return nil
}

type ifRunner struct {
	flow.BaseRunner
	c *Console
}

// OnExecute returns the branch in reverse so the jump stack visits it in
// listed order.
func (r ifRunner) OnExecute(cmd *flow.Command) []string {
	ok, err := r.c.scope.EvalBool(cmd.Param("cond"))
	if err != nil {
		r.c.logger.Warn("condition failed", "command", cmd.ID, "error", err)
	}
	branch := idsParam(cmd, "else")
	if ok {
		branch = idsParam(cmd, "then")
	}
	out := make([]string, len(branch))
	for n, id := range branch {
		out[len(branch)-1-n] = id
	}
	return out
}

type waitRunner struct {
	flow.BaseRunner
	c *Console
}

func (r waitRunner) OnExecute(cmd *flow.Command) []string {
	r.c.mu.Lock()
	r.c.waits[cmd.ID] = 0
	r.c.mu.Unlock()
	return nil
}

func (r waitRunner) IsFinished(cmd *flow.Command) flow.Poll {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.waits[cmd.ID]++
	if r.c.waits[cmd.ID] < intParam(cmd, "ticks", 1) {
		return flow.Waiting()
	}
	delete(r.c.waits, cmd.ID)
	return flow.Done()
}
