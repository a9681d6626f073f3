package flow

import (
	"context"
	"fmt"
	"time"
)

// ClosestSavepoint walks backward from target inside its block and returns
// the first command that is a savepoint: index 0 or runner-declared. Unknown
// targets resolve to the first block.
func (i *Interpreter) ClosestSavepoint(target Location) Location {
	b, ok := i.graph.Block(target.Block)
	if !ok {
		first, _ := i.graph.First()
		loc, _ := i.graph.LocationAt(first, 0)
		return loc
	}

	idx := target.Command
	if idx < 0 {
		idx = 0
	}
	if last := len(b.Commands) - 1; idx > last {
		idx = last
	}
	for ; idx > 0; idx-- {
		cmd := b.Commands[idx]
		if r := i.runners[cmd.ID]; r != nil && r.IsSavepoint(cmd) {
			break
		}
	}
	loc, _ := i.graph.LocationAt(b.ID, idx)
	return loc
}

// ClosestWaypoint returns the latest waypoint at or before target. The first
// block is always a waypoint.
func (i *Interpreter) ClosestWaypoint(target Location) Location {
	best := Location{Command: -1, Position: -1}
	for _, wp := range i.waypoints {
		if wp.Position > target.Position {
			break
		}
		best = wp
	}
	if best.Position < 0 && len(i.waypoints) > 0 {
		return i.waypoints[0]
	}
	return best
}

// Start begins a run at target.
//
// The target moves back to its closest savepoint. When that lies after the
// closest waypoint, the interpreter enters the waypoint in simulating mode
// and fast-forwards: side effects are suppressed through Context.Simulating
// while the state machine advances for real. Simulation stops at the target
// or at the first choicepoint, after which the host is asked to restore.
func (i *Interpreter) Start(ctx context.Context, target Location) error {
	i.bind(ctx)
	if i.graph.Len() == 0 {
		return &FlowError{Message: "graph has no blocks", Code: "EMPTY_GRAPH", Cause: ErrUnknownBlock}
	}
	if _, ok := i.graph.Block(target.Block); !ok {
		i.logger.Warn("start location not found, using first block", "block", target.Block)
	}

	i.reset()
	i.started = true
	i.continueHistory()
	return i.begin(target)
}

func (i *Interpreter) begin(target Location) error {
	target = i.ClosestSavepoint(target)
	wp := i.ClosestWaypoint(target)

	if wp.Position >= 0 && wp.Position < target.Position {
		i.simulateUntil = &target
		i.game.Simulating = true
		i.game.Transitions = false
		if i.hooks.OnSimulation != nil {
			i.hooks.OnSimulation(true)
		}
		i.notify(TransitionSimulationStart, wp.Block, "", map[string]interface{}{
			"target_block":   target.Block,
			"target_command": target.Command,
		})
		if !i.EnterBlock(wp.Block, wp.Command, "", "") {
			return fmt.Errorf("failed to enter waypoint %q: %w", wp.Block, ErrUnknownBlock)
		}
		return nil
	}

	if !i.EnterBlock(target.Block, target.Command, "", "") {
		return fmt.Errorf("failed to enter %q: %w", target.Block, ErrUnknownBlock)
	}
	return nil
}

// Resume restores a save payload.
//
// The seed and persisted visit tier are restored and the checkpoint id is
// resolved to a location (unknown ids fall back to the first block). If a
// waypoint precedes that location the run is replayed silently from it;
// otherwise the saved block states are applied directly. Either way the
// host is asked to restore once the interpreter has caught up.
func (i *Interpreter) Resume(ctx context.Context, data SaveData) error {
	i.bind(ctx)
	if i.graph.Len() == 0 {
		return &FlowError{Message: "graph has no blocks", Code: "EMPTY_GRAPH", Cause: ErrUnknownBlock}
	}

	data = data.Clone()
	i.reset()
	i.started = true
	i.continueHistory()
	if data.Seed != "" {
		i.SetSeed(data.Seed)
	}

	target, ok := i.graph.Lookup(data.Checkpoint)
	if ok {
		i.checkpoint = data.Checkpoint
	} else {
		if data.Checkpoint != "" {
			i.logger.Warn("checkpoint not found, using first block", "checkpoint", data.Checkpoint)
		}
		first, _ := i.graph.First()
		target, _ = i.graph.LocationAt(first, 0)
	}
	target = i.ClosestSavepoint(i.normalize(target))
	i.notify(TransitionRestore, target.Block, data.Checkpoint, map[string]interface{}{"phase": "resume"})

	wp := i.ClosestWaypoint(target)
	if wp.Position >= 0 && wp.Position < target.Position {
		i.visitFloor = i.unreplayable(data.Visits, wp)
		i.seedVisits(i.visitFloor, wp)
		return i.begin(target)
	}

	i.apply(data, target)
	i.startRestore()
	return nil
}

// unreplayable returns the persisted counts a replay from wp cannot rebuild:
// keys located before the waypoint and keys that name no block or command.
// All of them act as a floor once the simulation stops.
func (i *Interpreter) unreplayable(visits map[string]int, wp Location) map[string]int {
	floor := make(map[string]int)
	for k, v := range visits {
		if loc, ok := i.graph.Lookup(k); ok && loc.Position >= wp.Position {
			continue
		}
		floor[k] = v
	}
	return floor
}

// seedVisits installs the floor counts of blocks and commands before the
// waypoint so the replay evaluates against them. The waypoint's own block is
// seeded one below its count since entering it during the replay visits it
// again. Keys the graph does not know may be visited by runners during the
// replay; they are only applied as a floor when the simulation stops.
func (i *Interpreter) seedVisits(floor map[string]int, wp Location) {
	for k, v := range floor {
		if _, ok := i.graph.Lookup(k); !ok {
			continue
		}
		if k == wp.Block {
			v--
		}
		if v <= 0 {
			continue
		}
		i.visits[k] = v
		i.stored[k] = v
	}
	i.exposeVisits()
}

// apply installs saved block states without replaying.
func (i *Interpreter) apply(data SaveData, target Location) {
	for id, s := range data.Blocks {
		if _, ok := i.graph.Block(id); !ok || s == nil {
			continue
		}
		i.blocks[id] = s
	}
	for _, id := range i.graph.Blocks() {
		if s, ok := i.blocks[id]; ok && s.Loaded {
			i.loaded = append(i.loaded, id)
		}
		if s, ok := i.blocks[id]; ok && s.Executing && id != target.Block {
			i.logger.Warn("saved block executing outside checkpoint, stopping it", "block", id)
			s.Executing = false
			s.Stopped = true
		}
	}

	s := i.state(target.Block)
	if !s.Loaded {
		s.Loaded = true
		i.loaded = append(i.loaded, target.Block)
	}
	s.Executing = true
	s.Finished = false
	s.Stopped = false
	c := i.cur(target.Block)
	c.previous = target.Command
	c.current = target.Command
	i.activeParent = target.Block
	i.checkpoint = data.Checkpoint

	for k, v := range data.Visits {
		i.visits[k] = v
		i.stored[k] = v
	}
	i.exposeVisits()
	if i.metrics != nil {
		i.metrics.SetLoadedBlocks(len(i.loaded))
	}
}

func (i *Interpreter) atTarget(cmd *Command) bool {
	if i.simulateUntil == nil {
		return false
	}
	loc, ok := i.graph.CommandLocation(cmd.ID)
	return ok && loc.Position == i.simulateUntil.Position
}

// stopSimulation leaves simulating mode and asks the host to restore.
func (i *Interpreter) stopSimulation(blockID, reason string) RunStatus {
	i.simulateUntil = nil
	i.game.Simulating = false
	i.game.Transitions = true

	for k, v := range i.visitFloor {
		if i.visits[k] < v {
			i.visits[k] = v
		}
		if i.stored[k] < v {
			i.stored[k] = v
		}
	}
	i.visitFloor = nil
	i.exposeVisits()

	if i.hooks.OnSimulation != nil {
		i.hooks.OnSimulation(false)
	}
	i.notify(TransitionSimulationStop, blockID, "", map[string]interface{}{"reason": reason})

	i.startRestore()
	return RunReload
}

func (i *Interpreter) startRestore() {
	i.notify(TransitionRestore, i.activeParent, "", map[string]interface{}{"phase": "start"})
	if i.game.Host == nil {
		i.restoring = nil
		return
	}
	i.restoring = i.game.Host.Restore(i.ctx)
	if i.restoring == nil {
		i.restoring = closedRestore()
	}
	i.restoreStart = time.Now()
}

// pollRestore reports whether the pending restore has completed.
func (i *Interpreter) pollRestore() bool {
	select {
	case err := <-i.restoring:
		if err != nil {
			i.logger.Warn("host restore failed", "error", err)
		}
		if i.metrics != nil {
			i.metrics.ObserveRestore(time.Since(i.restoreStart))
		}
		i.restoring = nil
		i.notify(TransitionRestore, i.activeParent, "", map[string]interface{}{"phase": "done"})
		return true
	default:
		return false
	}
}
