package flow

import (
	"log/slog"

	"github.com/dshills/storyflow/flow/emit"
	"github.com/dshills/storyflow/flow/store"
)

// DefaultMaxIterations bounds the synchronous command advances RunCommands
// performs for one block in one call.
const DefaultMaxIterations = 10000

// Option configures an Interpreter.
//
//	interp, err := flow.New(g, reg, game,
//	    flow.WithSeed("s1"),
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	    flow.WithStore(st),
//	    flow.WithSession("player-1"),
//	    flow.WithAutosave(true),
//	)
type Option func(*config) error

type config struct {
	maxIterations int
	waypoints     []string
	seed          string
	emitter       emit.Emitter
	logger        *slog.Logger
	metrics       *PrometheusMetrics
	hooks         Hooks
	store         store.Store[SaveData]
	session       string
	autosave      bool
	evaluator     Evaluator
}

// WithMaxIterations sets the per-call iteration guard of RunCommands.
// Default: DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return &FlowError{Message: "max iterations must be positive", Code: "INVALID_OPTION"}
		}
		cfg.maxIterations = n
		return nil
	}
}

// WithWaypoints sets the ids (block or command) from which a resume may
// start simulating. The first block is always a waypoint.
func WithWaypoints(ids ...string) Option {
	return func(cfg *config) error {
		cfg.waypoints = append(cfg.waypoints, ids...)
		return nil
	}
}

// WithSeed sets the initial random seed. Without it a random seed is
// generated.
func WithSeed(seed string) Option {
	return func(cfg *config) error {
		cfg.seed = seed
		return nil
	}
}

// WithEmitter sets the destination of transition events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		cfg.emitter = e
		return nil
	}
}

// WithLogger sets the diagnostic logger. Default: the logger carried by the
// context passed to Start or Resume, else slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		cfg.logger = logger
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithHooks registers transition callbacks.
func WithHooks(h Hooks) Option {
	return func(cfg *config) error {
		cfg.hooks = h
		return nil
	}
}

// WithStore sets the store used by autosave, SaveSlot, LoadSlot and
// ResumeLatest.
func WithStore(st store.Store[SaveData]) Option {
	return func(cfg *config) error {
		cfg.store = st
		return nil
	}
}

// WithSession sets the session id used for autosave history and emitted
// events.
func WithSession(id string) Option {
	return func(cfg *config) error {
		cfg.session = id
		return nil
	}
}

// WithAutosave persists the save payload at every live savepoint. Requires
// WithStore.
func WithAutosave(enabled bool) Option {
	return func(cfg *config) error {
		cfg.autosave = enabled
		return nil
	}
}

// WithEvaluator connects the expression layer that receives visit counts and
// returned values.
func WithEvaluator(ev Evaluator) Option {
	return func(cfg *config) error {
		cfg.evaluator = ev
		return nil
	}
}
