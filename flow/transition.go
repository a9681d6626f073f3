package flow

import "github.com/dshills/storyflow/flow/emit"

// Transition enumerates the notifications the interpreter fires.
type Transition int

const (
	TransitionLoad Transition = iota
	TransitionUnload
	TransitionExecute
	TransitionEnter
	TransitionFinish
	TransitionStop
	TransitionReturn
	TransitionJump
	TransitionCheckpoint
	TransitionSimulationStart
	TransitionSimulationStop
	TransitionRestore
)

var transitionNames = [...]string{
	TransitionLoad:            "load",
	TransitionUnload:          "unload",
	TransitionExecute:         "execute",
	TransitionEnter:           "enter",
	TransitionFinish:          "finish",
	TransitionStop:            "stop",
	TransitionReturn:          "return",
	TransitionJump:            "jump",
	TransitionCheckpoint:      "checkpoint",
	TransitionSimulationStart: "simulation_start",
	TransitionSimulationStop:  "simulation_stop",
	TransitionRestore:         "restore",
}

func (t Transition) String() string {
	if int(t) >= 0 && int(t) < len(transitionNames) {
		return transitionNames[t]
	}
	return "unknown"
}

// Hooks is the fixed callback table registered at construction with
// WithHooks. Nil fields are skipped.
type Hooks struct {
	OnLoad       func(blockID string)
	OnUnload     func(blockID string)
	OnExecute    func(blockID string, commandIndex int)
	OnEnter      func(blockID string)
	OnFinish     func(blockID string)
	OnStop       func(blockID string)
	OnReturn     func(blockID string, value any)
	OnJump       func(fromBlockID, toBlockID string)
	OnCheckpoint func(id string)
	OnSimulation func(simulating bool)
}

// notify dispatches a transition to the hooks, the emitter and the metrics.
func (i *Interpreter) notify(t Transition, blockID, commandID string, meta map[string]interface{}) {
	if i.metrics != nil {
		i.metrics.RecordTransition(t)
	}

	if i.emitter != nil {
		if meta == nil {
			meta = map[string]interface{}{}
		}
		meta["simulating"] = i.game.Simulating
		i.emitter.Emit(emit.Event{
			SessionID: i.session,
			Tick:      i.tick,
			BlockID:   blockID,
			CommandID: commandID,
			Msg:       t.String(),
			Meta:      meta,
		})
	}

	i.logger.Debug("flow transition",
		"transition", t.String(),
		"block", blockID,
		"command", commandID,
		"simulating", i.game.Simulating,
	)
}
