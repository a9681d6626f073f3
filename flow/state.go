package flow

// Status is the lifecycle state of a block.
type Status int

const (
	StatusUnloaded Status = iota
	StatusLoaded
	StatusExecuting
	StatusFinished
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoaded:
		return "loaded"
	case StatusExecuting:
		return "executing"
	case StatusFinished:
		return "finished"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BlockState is the persisted, mutable state of one block. It is created
// lazily the first time a block is referenced.
type BlockState struct {
	Loaded    bool `json:"loaded,omitempty"`
	Executing bool `json:"executing,omitempty"`
	Finished  bool `json:"finished,omitempty"`
	Stopped   bool `json:"stopped,omitempty"`

	// ReturnToBlock and ReturnToCommand record where control goes when the
	// block returns. Empty when the block was not entered as a call.
	ReturnToBlock   string `json:"returnToBlock,omitempty"`
	ReturnToCommand string `json:"returnToCommand,omitempty"`

	// CommandJumpStack holds command ids to visit before falling through to
	// the next index. The last element is popped first.
	CommandJumpStack []string `json:"commandJumpStack,omitempty"`
}

// Status derives the lifecycle state from the flags.
func (s *BlockState) Status() Status {
	switch {
	case s == nil:
		return StatusUnloaded
	case s.Executing:
		return StatusExecuting
	case s.Finished:
		return StatusFinished
	case s.Stopped:
		return StatusStopped
	case s.Loaded:
		return StatusLoaded
	default:
		return StatusUnloaded
	}
}

func (s *BlockState) clone() *BlockState {
	c := *s
	c.CommandJumpStack = append([]string(nil), s.CommandJumpStack...)
	return &c
}

// resetExecution clears execution-only fields. Loaded and the return linkage
// are kept.
func (s *BlockState) resetExecution() {
	s.Executing = false
	s.Finished = false
	s.Stopped = false
	s.CommandJumpStack = nil
}

// cursor is the per-block FlowMap entry. It is derivable from BlockState and
// the location index, so it is never persisted.
type cursor struct {
	executingCommand bool
	previous         int
	current          int
}

// SaveData is the save payload owned by the interpreter.
type SaveData struct {
	Blocks     map[string]*BlockState `json:"blocks"`
	Seed       string                 `json:"seed"`
	Checkpoint string                 `json:"checkpoint"`

	// Visits is the persisted visitation tier: counts that were read by the
	// evaluator or are always stored (block entries, choices).
	Visits map[string]int `json:"visits,omitempty"`
}

// Clone returns a deep copy of the payload.
func (d SaveData) Clone() SaveData {
	c := SaveData{
		Blocks:     make(map[string]*BlockState, len(d.Blocks)),
		Seed:       d.Seed,
		Checkpoint: d.Checkpoint,
		Visits:     make(map[string]int, len(d.Visits)),
	}
	for id, s := range d.Blocks {
		if s != nil {
			c.Blocks[id] = s.clone()
		}
	}
	for k, v := range d.Visits {
		c.Visits[k] = v
	}
	return c
}
