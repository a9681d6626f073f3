package flow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/dshills/storyflow/flow/emit"
	"github.com/dshills/storyflow/flow/store"
	"github.com/dshills/storyflow/internal/ctxlog"
)

// RunStatus is the result of RunCommands.
type RunStatus int

const (
	// RunRunning means the block still has work; call again next tick.
	RunRunning RunStatus = iota

	// RunFinished means the block reached its terminal command.
	RunFinished

	// RunReload means execution cannot continue this tick because a host
	// restore was started.
	RunReload
)

func (s RunStatus) String() string {
	switch s {
	case RunRunning:
		return "running"
	case RunFinished:
		return "finished"
	case RunReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Interpreter walks a Graph one tick at a time.
//
// It owns the block states, the per-block cursors, the visit counters and the
// random generator. It is single-threaded: all methods must be called from
// the goroutine that drives Update.
type Interpreter struct {
	graph     *Graph
	registry  *Registry
	runners   map[string]Runner // command id -> runner
	game      *Context
	evaluator Evaluator

	emitter emit.Emitter
	metrics *PrometheusMetrics
	hooks   Hooks
	logger  *slog.Logger
	ownLog  bool

	store    store.Store[SaveData]
	session  string
	autosave bool

	maxIterations int
	waypoints     []Location // sorted by position

	blocks       map[string]*BlockState
	cursors      map[string]*cursor
	loaded       []string // load order
	activeParent string

	visits map[string]int // in-memory tier
	stored map[string]int // persisted tier

	seed string
	rng  *rand.Rand

	checkpoint string
	started    bool
	tick       int
	advances   int

	simulateUntil *Location
	visitFloor    map[string]int // persisted counts applied when simulation stops
	restoring     <-chan error
	restoreStart  time.Time

	ctx context.Context
}

// New creates an interpreter for g.
//
// Each command's runner is resolved from reg once, here. Commands whose kind
// has no runner are executed as no-ops. A nil game gets a fresh Context
// without host.
func New(g *Graph, reg *Registry, game *Context, opts ...Option) (*Interpreter, error) {
	if g == nil {
		return nil, &FlowError{Message: "graph cannot be nil", Code: "INVALID_GRAPH"}
	}

	cfg := config{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if game == nil {
		game = NewContext(nil)
	}

	i := &Interpreter{
		graph:         g,
		registry:      reg,
		runners:       make(map[string]Runner),
		game:          game,
		evaluator:     cfg.evaluator,
		emitter:       cfg.emitter,
		metrics:       cfg.metrics,
		hooks:         cfg.hooks,
		logger:        cfg.logger,
		ownLog:        cfg.logger != nil,
		store:         cfg.store,
		session:       cfg.session,
		autosave:      cfg.autosave,
		maxIterations: cfg.maxIterations,
		ctx:           context.Background(),
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.emitter == nil {
		i.emitter = emit.NewNullEmitter()
	}
	if i.autosave && i.store == nil {
		return nil, &FlowError{Message: "autosave requires a store", Code: "INVALID_OPTION", Cause: ErrNoStore}
	}

	missing := map[string]bool{}
	for _, id := range g.Blocks() {
		b, _ := g.Block(id)
		for _, c := range b.Commands {
			if c.Kind == FinishKind {
				continue
			}
			if r, ok := reg.Lookup(c.Kind); ok {
				i.runners[c.ID] = r
			} else if !missing[c.Kind] {
				missing[c.Kind] = true
				i.logger.Warn("no runner registered for command kind", "kind", c.Kind)
			}
		}
	}

	if err := i.resolveWaypoints(cfg.waypoints); err != nil {
		return nil, err
	}

	i.reset()
	if cfg.seed != "" {
		i.SetSeed(cfg.seed)
	} else {
		i.RegenerateSeed()
	}

	return i, nil
}

func (i *Interpreter) resolveWaypoints(ids []string) error {
	if first, ok := i.graph.First(); ok {
		loc, _ := i.graph.LocationAt(first, 0)
		i.waypoints = append(i.waypoints, loc)
	}
	for _, id := range ids {
		loc, ok := i.graph.Lookup(id)
		if !ok {
			return &FlowError{
				Message: fmt.Sprintf("waypoint %q not found", id),
				Code:    "UNKNOWN_WAYPOINT",
				Cause:   ErrUnknownBlock,
			}
		}
		i.waypoints = append(i.waypoints, i.normalize(loc))
	}
	sort.Slice(i.waypoints, func(a, b int) bool {
		return i.waypoints[a].Position < i.waypoints[b].Position
	})
	return nil
}

// reset drops all run state. The seed is kept.
func (i *Interpreter) reset() {
	i.blocks = make(map[string]*BlockState)
	i.cursors = make(map[string]*cursor)
	i.loaded = nil
	i.activeParent = ""
	i.visits = make(map[string]int)
	i.stored = make(map[string]int)
	i.checkpoint = ""
	i.simulateUntil = nil
	i.visitFloor = nil
	i.restoring = nil
	i.game.Simulating = false
	i.game.Transitions = true
}

// bind adopts the context of a Start or Resume call.
func (i *Interpreter) bind(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	i.ctx = ctx
	if !i.ownLog {
		i.logger = ctxlog.FromContext(ctx)
	}
}

// state returns the block state, creating it on first reference.
func (i *Interpreter) state(id string) *BlockState {
	s, ok := i.blocks[id]
	if !ok {
		s = &BlockState{}
		i.blocks[id] = s
	}
	return s
}

func (i *Interpreter) cur(id string) *cursor {
	c, ok := i.cursors[id]
	if !ok {
		c = &cursor{}
		i.cursors[id] = c
	}
	return c
}

// normalize turns a block location into the location of its first command.
func (i *Interpreter) normalize(loc Location) Location {
	if loc.Command >= 0 {
		return loc
	}
	if l, ok := i.graph.LocationAt(loc.Block, 0); ok {
		return l
	}
	return loc
}

// Close calls OnDestroy on every registered runner.
func (i *Interpreter) Close() {
	i.registry.each(func(r Runner) { r.OnDestroy() })
}

// Graph returns the graph being interpreted.
func (i *Interpreter) Graph() *Graph {
	return i.graph
}

// Game returns the shared context.
func (i *Interpreter) Game() *Context {
	return i.game
}

// Session returns the session id.
func (i *Interpreter) Session() string {
	return i.session
}

// Tick returns the number of Update calls, including ticks restored from a
// save.
func (i *Interpreter) Tick() int {
	return i.tick
}

// Location returns the location of the command at index in blockID.
func (i *Interpreter) Location(blockID string, index int) (Location, bool) {
	return i.graph.LocationAt(blockID, index)
}

// CurrentLocation returns the location of a block's cursor.
func (i *Interpreter) CurrentLocation(blockID string) (Location, bool) {
	c, ok := i.cursors[blockID]
	if !ok {
		return Location{}, false
	}
	return i.graph.LocationAt(blockID, c.current)
}

// ActiveBlock returns the block most recently entered.
func (i *Interpreter) ActiveBlock() string {
	return i.activeParent
}

// LoadedBlocks returns the loaded block ids in load order.
func (i *Interpreter) LoadedBlocks() []string {
	return append([]string(nil), i.loaded...)
}

// BlockState returns a copy of a block's state.
func (i *Interpreter) BlockState(id string) (BlockState, bool) {
	s, ok := i.blocks[id]
	if !ok {
		return BlockState{}, false
	}
	return *s.clone(), true
}

// Checkpoint returns the id of the last reached savepoint.
func (i *Interpreter) Checkpoint() string {
	return i.checkpoint
}

// Simulating reports whether the interpreter is fast-forwarding.
func (i *Interpreter) Simulating() bool {
	return i.game.Simulating
}

// Restoring reports whether a host restore is pending.
func (i *Interpreter) Restoring() bool {
	return i.restoring != nil
}

// Running reports whether any loaded block is still executing.
func (i *Interpreter) Running() bool {
	return i.anyExecuting()
}
