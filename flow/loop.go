package flow

import "time"

// Update advances the interpreter by one tick.
//
// Every runner receives OnUpdate(dt), then RunCommands runs for each loaded,
// executing block in load order. While simulating, passes repeat within the
// same tick until the simulation stops or no block makes progress.
func (i *Interpreter) Update(dt time.Duration) {
	i.tick++
	if i.metrics != nil {
		i.metrics.RecordTick()
	}
	i.registry.each(func(r Runner) { r.OnUpdate(dt) })

	for pass := 0; pass < i.maxIterations; pass++ {
		before := i.advances
		for _, id := range i.LoadedBlocks() {
			s, ok := i.blocks[id]
			if !ok || !s.Loaded || !s.Executing {
				continue
			}
			if i.RunCommands(id) == RunReload {
				return
			}
		}
		if !i.game.Simulating || i.advances == before {
			return
		}
	}
}

// UpdateBlock runs one block if it is loaded and executing. The bool is false
// when the block is unknown or idle.
func (i *Interpreter) UpdateBlock(blockID string) (RunStatus, bool) {
	if _, ok := i.graph.Block(blockID); !ok {
		i.logger.Warn("update of unknown block", "block", blockID)
		return RunFinished, false
	}
	s, ok := i.blocks[blockID]
	if !ok || !s.Loaded || !s.Executing {
		return RunFinished, false
	}
	return i.RunCommands(blockID), true
}

// RunCommands drives one block's commands from its cursor until a command
// is still running, control leaves the block, or the block ends.
func (i *Interpreter) RunCommands(blockID string) RunStatus {
	b, ok := i.graph.Block(blockID)
	if !ok {
		return RunFinished
	}

	if i.restoring != nil && !i.pollRestore() {
		return RunRunning
	}

	s := i.state(blockID)
	c := i.cur(blockID)

	for n := 0; n < i.maxIterations; n++ {
		if !s.Executing {
			return RunRunning
		}

		idx := c.current
		if idx >= len(b.Commands)-1 {
			c.executingCommand = false
			if i.game.Simulating && i.simulateUntil != nil && i.simulateUntil.Block == blockID && i.simulateUntil.Command >= idx {
				return i.stopSimulation(blockID, "target")
			}
			i.Continue(blockID)
			if i.game.Simulating && i.simulateUntil != nil && !i.anyExecuting() {
				return i.stopSimulation(blockID, "end")
			}
			return RunFinished
		}

		cmd := b.Commands[idx]
		runner := i.runners[cmd.ID]

		if !c.executingCommand {
			choicepoint := runner != nil && runner.IsChoicepoint(cmd)
			savepoint := idx == 0 || (runner != nil && runner.IsSavepoint(cmd))

			if i.game.Simulating {
				if i.atTarget(cmd) {
					return i.stopSimulation(blockID, "target")
				}
				if choicepoint {
					return i.stopSimulation(blockID, "choicepoint")
				}
			} else if savepoint {
				i.reachCheckpoint(cmd)
			}

			i.Visit(cmd.ID, choicepoint)

			if runner == nil {
				i.advance(blockID, s, c, idx)
				continue
			}

			c.executingCommand = true
			entries := runner.OnExecute(cmd)
			i.settleVisit(cmd.ID)
			if len(entries) > 0 {
				i.CommandJumpStackPush(blockID, entries...)
			}
			if i.metrics != nil {
				i.metrics.RecordCommand(cmd.Kind, i.game.Simulating)
			}
			i.logger.Debug("command started",
				"block", blockID, "command", cmd.ID, "kind", cmd.Kind, "simulating", i.game.Simulating)

			// OnExecute may have moved control elsewhere.
			if !s.Executing || c.current != idx {
				return RunRunning
			}
		}

		poll := runner.IsFinished(cmd)
		if poll.Jump != "" {
			c.executingCommand = false
			if i.JumpToBlock(blockID, idx, poll.Jump, poll.Call) {
				runner.OnFinished(cmd)
				return RunRunning
			}
			i.logger.Warn("jump target not found, continuing", "block", blockID, "command", cmd.ID, "target", poll.Jump)
		} else if poll.Status == PollBlocked || (poll.Status == PollWaiting && !i.game.Simulating) {
			return RunRunning
		}

		c.executingCommand = false
		runner.OnFinished(cmd)
		i.advance(blockID, s, c, idx)
	}

	i.logger.Warn("iteration guard reached", "block", blockID, "limit", i.maxIterations)
	return RunRunning
}

// advance moves the cursor past idx, consuming the jump stack first.
func (i *Interpreter) advance(blockID string, s *BlockState, c *cursor, idx int) {
	c.previous = idx
	i.advances++

	for len(s.CommandJumpStack) > 0 {
		id, _ := i.CommandJumpStackPop(blockID)
		cmd, ok := i.graph.Command(id)
		if ok && cmd.Block == blockID {
			c.current = cmd.Index
			return
		}
		i.logger.Warn("dropping jump stack entry outside block", "block", blockID, "command", id)
	}
	c.current = idx + 1
}

func (i *Interpreter) anyExecuting() bool {
	for _, id := range i.loaded {
		if s := i.blocks[id]; s != nil && s.Executing {
			return true
		}
	}
	return false
}

// reachCheckpoint records a live savepoint and autosaves when enabled.
func (i *Interpreter) reachCheckpoint(cmd *Command) {
	i.checkpoint = cmd.ID
	if i.game.Host != nil {
		i.game.Host.Checkpoint(cmd.ID)
	}
	if i.hooks.OnCheckpoint != nil {
		i.hooks.OnCheckpoint(cmd.ID)
	}
	i.notify(TransitionCheckpoint, cmd.Block, cmd.ID, nil)

	if !i.autosave {
		return
	}
	if err := i.store.SaveStep(i.ctx, i.session, i.tick, cmd.Block, i.Save()); err != nil {
		i.logger.Warn("autosave failed", "block", cmd.Block, "command", cmd.ID, "error", err)
		if i.metrics != nil {
			i.metrics.IncrementSaveErrors()
		}
	}
}
