package flow

import "sync"

// Variable names exposed to the evaluator.
const (
	// VisitedVar holds the visit count of the block or command being visited.
	VisitedVar = "visited"

	// VisitsNamespace holds visit counts keyed by block or command id.
	VisitsNamespace = "visits"

	// ReturnedNamespace holds values returned by blocks, keyed by block id.
	ReturnedNamespace = "returned"
)

// Evaluator is the boundary to the expression/templating layer.
type Evaluator interface {
	// Assign stores value as namespace[key], or as the top-level variable key
	// when namespace is empty.
	Assign(namespace, key string, value any)

	// VisitConsumed reports whether VisitedVar was read since the previous
	// call, and resets the flag.
	VisitConsumed() bool
}

// MapScope is a map-backed Evaluator for hosts without a scripting layer.
// Reads go through Get, which flags VisitedVar consumption.
type MapScope struct {
	mu       sync.Mutex
	vars     map[string]any
	spaces   map[string]map[string]any
	consumed bool
}

// NewMapScope creates an empty MapScope.
func NewMapScope() *MapScope {
	return &MapScope{
		vars:   make(map[string]any),
		spaces: make(map[string]map[string]any),
	}
}

// Assign implements Evaluator.
func (m *MapScope) Assign(namespace, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if namespace == "" {
		m.vars[key] = value
		return
	}
	ns, ok := m.spaces[namespace]
	if !ok {
		ns = make(map[string]any)
		m.spaces[namespace] = ns
	}
	ns[key] = value
}

// Get reads a top-level variable.
func (m *MapScope) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key == VisitedVar {
		m.consumed = true
	}
	v, ok := m.vars[key]
	return v, ok
}

// Lookup reads namespace[key].
func (m *MapScope) Lookup(namespace, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.spaces[namespace][key]
	return v, ok
}

// VisitConsumed implements Evaluator.
func (m *MapScope) VisitConsumed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.consumed
	m.consumed = false
	return c
}
