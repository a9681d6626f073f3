package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// Data is lost when the process exits. MemStore is safe for concurrent use
// and can be serialized with MarshalJSON for debugging or quick saves.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string][]StepRecord[S] // sessionID -> history
	checkpoints map[string]Checkpoint[S]   // slot -> checkpoint
}

// NewMemStore creates an empty in-memory store.
//
//	st := store.NewMemStore[flow.SaveData]()
//	interp, _ := flow.New(g, reg, game, flow.WithStore(st), flow.WithSession("s1"))
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string][]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(_ context.Context, sessionID string, tick int, blockID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := StepRecord[S]{Tick: tick, BlockID: blockID, State: state}

	history := m.steps[sessionID]
	for i := range history {
		if history[i].Tick == tick {
			history[i] = record
			return nil
		}
	}
	m.steps[sessionID] = append(history, record)
	return nil
}

// LoadLatest implements Store. Out-of-order saves are handled by picking the
// highest tick.
func (m *MemStore[S]) LoadLatest(_ context.Context, sessionID string) (state S, tick int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.steps[sessionID]
	if len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Tick > latest.Tick {
			latest = record
		}
	}
	return latest.State, latest.Tick, nil
}

// History returns a copy of a session's autosave records in save order.
func (m *MemStore[S]) History(sessionID string) []StepRecord[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StepRecord[S](nil), m.steps[sessionID]...)
}

// SaveCheckpoint implements Store.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, slot string, state S, tick int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[slot] = Checkpoint[S]{ID: slot, State: state, Tick: tick}
	return nil
}

// LoadCheckpoint implements Store.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, slot string) (state S, tick int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[slot]
	if !ok {
		var zero S
		return zero, 0, ErrNotFound
	}
	return cp.State, cp.Tick, nil
}

// ListCheckpoints implements Store.
func (m *MemStore[S]) ListCheckpoints(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slots := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		slots = append(slots, id)
	}
	sort.Strings(slots)
	return slots, nil
}

// DeleteCheckpoint implements Store.
func (m *MemStore[S]) DeleteCheckpoint(_ context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checkpoints[slot]; !ok {
		return ErrNotFound
	}
	delete(m.checkpoints, slot)
	return nil
}

type serializableMemStore[S any] struct {
	Steps       map[string][]StepRecord[S] `json:"steps"`
	Checkpoints map[string]Checkpoint[S]   `json:"checkpoints"`
}

// MarshalJSON serializes the whole store.
func (m *MemStore[S]) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return json.Marshal(serializableMemStore[S]{
		Steps:       m.steps,
		Checkpoints: m.checkpoints,
	})
}

// UnmarshalJSON replaces the store contents with data.
func (m *MemStore[S]) UnmarshalJSON(data []byte) error {
	var s serializableMemStore[S]
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = s.Steps
	if m.steps == nil {
		m.steps = make(map[string][]StepRecord[S])
	}
	m.checkpoints = s.Checkpoints
	if m.checkpoints == nil {
		m.checkpoints = make(map[string]Checkpoint[S])
	}
	return nil
}
