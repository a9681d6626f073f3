package flow

// LoadBlock marks a block loaded and previews its commands. Loading an
// already loaded block is a no-op. Unknown ids return false.
func (i *Interpreter) LoadBlock(id string) bool {
	b, ok := i.graph.Block(id)
	if !ok {
		i.logger.Warn("load of unknown block", "block", id)
		return false
	}

	s := i.state(id)
	if s.Loaded {
		return true
	}
	s.Loaded = true
	i.loaded = append(i.loaded, id)

	for _, c := range b.Commands {
		if r := i.runners[c.ID]; r != nil {
			r.OnPreview(c)
		}
	}

	if i.hooks.OnLoad != nil {
		i.hooks.OnLoad(id)
	}
	i.notify(TransitionLoad, id, "", nil)
	if i.metrics != nil {
		i.metrics.SetLoadedBlocks(len(i.loaded))
	}
	return true
}

// UnloadBlock marks a block unloaded and stops it executing. Unloading a block
// that is not loaded is a no-op. Unknown ids return false.
func (i *Interpreter) UnloadBlock(id string) bool {
	if _, ok := i.graph.Block(id); !ok {
		i.logger.Warn("unload of unknown block", "block", id)
		return false
	}

	s, ok := i.blocks[id]
	if !ok || !s.Loaded {
		return true
	}
	s.Loaded = false
	s.Executing = false
	if c, ok := i.cursors[id]; ok {
		c.executingCommand = false
	}

	for n, lid := range i.loaded {
		if lid == id {
			i.loaded = append(i.loaded[:n], i.loaded[n+1:]...)
			break
		}
	}

	if i.hooks.OnUnload != nil {
		i.hooks.OnUnload(id)
	}
	i.notify(TransitionUnload, id, "", nil)
	if i.metrics != nil {
		i.metrics.SetLoadedBlocks(len(i.loaded))
	}
	return true
}

// ExecuteBlock resets the block's execution fields and points its cursor at
// start. It counts a visit of the block but runs no commands.
func (i *Interpreter) ExecuteBlock(id string, start int) bool {
	b, ok := i.graph.Block(id)
	if !ok {
		i.logger.Warn("execute of unknown block", "block", id)
		return false
	}

	if start < 0 {
		start = 0
	}
	if last := len(b.Commands) - 1; start > last {
		start = last
	}

	s := i.state(id)
	s.resetExecution()
	s.Executing = true

	c := i.cur(id)
	c.executingCommand = false
	c.previous = c.current
	c.current = start
	i.advances++

	i.Visit(id, true)

	if i.hooks.OnExecute != nil {
		i.hooks.OnExecute(id, start)
	}
	i.notify(TransitionExecute, id, "", map[string]interface{}{"command_index": start})
	return true
}

// EnterBlock makes id the active block and starts executing it at start.
//
// returnBlock and returnCommand record where control goes when the block
// returns; pass empty strings for a plain entry. Every loaded block that is
// neither id nor one of its ancestors is unloaded, then id and its direct
// children are loaded.
func (i *Interpreter) EnterBlock(id string, start int, returnBlock, returnCommand string) bool {
	b, ok := i.graph.Block(id)
	if !ok {
		i.logger.Warn("enter of unknown block", "block", id)
		return false
	}

	s := i.state(id)
	s.ReturnToBlock = returnBlock
	s.ReturnToCommand = returnCommand
	i.activeParent = id

	for _, lid := range i.LoadedBlocks() {
		if lid != id && !b.hasAncestor(lid) {
			i.UnloadBlock(lid)
		}
	}

	i.LoadBlock(id)
	for _, child := range b.Children {
		i.LoadBlock(child)
	}

	if i.hooks.OnEnter != nil {
		i.hooks.OnEnter(id)
	}
	meta := map[string]interface{}{"command_index": start}
	if returnBlock != "" {
		meta["return_block"] = returnBlock
	}
	i.notify(TransitionEnter, id, "", meta)

	return i.ExecuteBlock(id, start)
}

// JumpToBlock stops from and enters to. With returnWhenFinished, to returns
// to the command after fromIndex when it finishes.
func (i *Interpreter) JumpToBlock(from string, fromIndex int, to string, returnWhenFinished bool) bool {
	src, ok := i.graph.Block(from)
	if !ok {
		i.logger.Warn("jump from unknown block", "block", from)
		return false
	}
	if _, ok := i.graph.Block(to); !ok {
		i.logger.Warn("jump to unknown block", "block", from, "target", to)
		return false
	}

	next := fromIndex + 1
	if next < 0 {
		next = 0
	}
	if last := len(src.Commands) - 1; next > last {
		next = last
	}
	returnCommand := src.Commands[next].ID

	i.StopBlock(from)

	if i.hooks.OnJump != nil {
		i.hooks.OnJump(from, to)
	}
	i.notify(TransitionJump, from, "", map[string]interface{}{
		"target": to,
		"call":   returnWhenFinished,
	})

	if returnWhenFinished {
		return i.EnterBlock(to, 0, from, returnCommand)
	}
	return i.EnterBlock(to, 0, "", "")
}

// Continue moves past a block that ran to its end: it returns to the caller
// when one was recorded, otherwise it enters the next declared block.
// Returns false when there is nowhere to go.
func (i *Interpreter) Continue(id string) bool {
	if _, ok := i.graph.Block(id); !ok {
		i.logger.Warn("continue of unknown block", "block", id)
		return false
	}

	if s := i.state(id); s.ReturnToBlock != "" {
		return i.ReturnFromBlock(id, nil)
	}

	i.FinishBlock(id)

	next, ok := i.graph.Next(id)
	if !ok {
		i.logger.Info("story reached its end", "block", id, "error", ErrNoMoreBlocks)
		return false
	}
	return i.EnterBlock(next, 0, "", "")
}

// ReturnFromBlock finishes id, publishes value as returned[id] and re-enters
// the recorded caller at the recorded command. The caller keeps its own
// return linkage and jump stack. Returns false, changing nothing, when no
// return target was recorded.
func (i *Interpreter) ReturnFromBlock(id string, value any) bool {
	if _, ok := i.graph.Block(id); !ok {
		i.logger.Warn("return from unknown block", "block", id)
		return false
	}

	s, ok := i.blocks[id]
	if !ok || s.ReturnToBlock == "" {
		i.logger.Debug("return without target", "block", id, "error", ErrNoReturnTarget)
		return false
	}
	if _, ok := i.graph.Block(s.ReturnToBlock); !ok {
		i.logger.Warn("return to unknown block", "block", id, "target", s.ReturnToBlock)
		return false
	}

	callerID := s.ReturnToBlock
	index := 0
	if cmd, ok := i.graph.Command(s.ReturnToCommand); ok && cmd.Block == callerID {
		index = cmd.Index
	} else {
		i.logger.Warn("return command not in caller, restarting caller",
			"block", id, "target", callerID, "command", s.ReturnToCommand)
	}

	i.FinishBlock(id)
	s.ReturnToBlock = ""
	s.ReturnToCommand = ""

	if i.evaluator != nil {
		i.evaluator.Assign(ReturnedNamespace, id, value)
	}
	if i.hooks.OnReturn != nil {
		i.hooks.OnReturn(id, value)
	}
	i.notify(TransitionReturn, id, "", map[string]interface{}{"target": callerID})

	caller := i.state(callerID)
	keepBlock, keepCommand := caller.ReturnToBlock, caller.ReturnToCommand
	stack := append([]string(nil), caller.CommandJumpStack...)

	if !i.EnterBlock(callerID, index, keepBlock, keepCommand) {
		return false
	}
	caller.CommandJumpStack = stack
	return true
}

// FinishBlock marks a block finished. It has to be entered again to run.
func (i *Interpreter) FinishBlock(id string) bool {
	if _, ok := i.graph.Block(id); !ok {
		i.logger.Warn("finish of unknown block", "block", id)
		return false
	}

	s := i.state(id)
	s.Executing = false
	s.Stopped = false
	s.Finished = true
	if c, ok := i.cursors[id]; ok {
		c.executingCommand = false
	}

	if i.hooks.OnFinish != nil {
		i.hooks.OnFinish(id)
	}
	i.notify(TransitionFinish, id, "", nil)
	return true
}

// StopBlock suspends a block. The runner of an in-flight command is expected
// to abandon its work.
func (i *Interpreter) StopBlock(id string) bool {
	if _, ok := i.graph.Block(id); !ok {
		i.logger.Warn("stop of unknown block", "block", id)
		return false
	}

	s := i.state(id)
	s.Executing = false
	s.Stopped = true
	if c, ok := i.cursors[id]; ok {
		c.executingCommand = false
	}

	if i.hooks.OnStop != nil {
		i.hooks.OnStop(id)
	}
	i.notify(TransitionStop, id, "", nil)
	return true
}

// CommandJumpStackPush queues command ids to visit before the block falls
// through to its next index. The last id pushed is visited first.
func (i *Interpreter) CommandJumpStackPush(blockID string, commandIDs ...string) bool {
	if _, ok := i.graph.Block(blockID); !ok {
		return false
	}
	s := i.state(blockID)
	s.CommandJumpStack = append(s.CommandJumpStack, commandIDs...)
	if i.metrics != nil {
		i.metrics.SetJumpStackDepth(blockID, len(s.CommandJumpStack))
	}
	return true
}

// CommandJumpStackPop removes and returns the most recently pushed id.
func (i *Interpreter) CommandJumpStackPop(blockID string) (string, bool) {
	s, ok := i.blocks[blockID]
	if !ok || len(s.CommandJumpStack) == 0 {
		return "", false
	}
	n := len(s.CommandJumpStack) - 1
	id := s.CommandJumpStack[n]
	s.CommandJumpStack = s.CommandJumpStack[:n]
	if i.metrics != nil {
		i.metrics.SetJumpStackDepth(blockID, n)
	}
	return id, true
}
