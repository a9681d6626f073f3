package emit

import "sync"

// BufferedEmitter stores events in memory, grouped by session, and answers
// history queries. Useful in tests and for debugging tools that replay what
// happened during a playthrough.
//
//	emitter := emit.NewBufferedEmitter()
//	interp, _ := flow.New(g, reg, game, flow.WithEmitter(emitter), flow.WithSession("s1"))
//	...
//	entered := emitter.GetHistoryWithFilter("s1", emit.HistoryFilter{Msg: "enter"})
//
// All events are kept until Clear is called.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // sessionID -> events
}

// HistoryFilter selects events. Empty fields match everything; set fields
// are combined with AND.
type HistoryFilter struct {
	BlockID string // exact block id
	Msg     string // exact transition name
	MinTick *int   // tick >= MinTick
	MaxTick *int   // tick <= MaxTick
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit appends the event to its session history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.SessionID] = append(b.events[event.SessionID], event)
}

// GetHistory returns a copy of all events for a session in emission order.
func (b *BufferedEmitter) GetHistory(sessionID string) []Event {
	return b.GetHistoryWithFilter(sessionID, HistoryFilter{})
}

// GetHistoryWithFilter returns the session's events that match filter.
func (b *BufferedEmitter) GetHistoryWithFilter(sessionID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[sessionID] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

// Messages returns the Msg of every event of a session, in order.
func (b *BufferedEmitter) Messages(sessionID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[sessionID]
	msgs := make([]string, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, e.Msg)
	}
	return msgs
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.BlockID != "" && event.BlockID != filter.BlockID {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.MinTick != nil && event.Tick < *filter.MinTick {
		return false
	}
	if filter.MaxTick != nil && event.Tick > *filter.MaxTick {
		return false
	}
	return true
}

// Clear removes the events of one session, or of all sessions when
// sessionID is empty.
func (b *BufferedEmitter) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sessionID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, sessionID)
}
