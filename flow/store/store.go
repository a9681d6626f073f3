// Package store persists interpreter save payloads.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested session or save slot does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by database-backed stores after Close.
var ErrClosed = errors.New("store is closed")

// Store persists save payloads.
//
// It keeps two kinds of records:
//   - Autosave history: one record per session and tick, written at live
//     savepoints. LoadLatest returns the newest one for resumption.
//   - Save slots: named snapshots chosen by the player ("slot-1", "quick").
//
// Implementations:
//   - MemStore (tests, single process)
//   - SQLiteStore (single file, zero setup)
//   - MySQLStore (shared database)
//   - RedisStore (shared cache with optional TTL)
//
// Type parameter S is the payload type; database stores require it to be
// JSON-serializable.
type Store[S any] interface {
	// SaveStep records the payload reached at tick while blockID was running.
	// A second save for the same session and tick replaces the first.
	SaveStep(ctx context.Context, sessionID string, tick int, blockID string, state S) error

	// LoadLatest returns the payload with the highest tick for a session.
	// Returns ErrNotFound if the session has no records.
	LoadLatest(ctx context.Context, sessionID string) (state S, tick int, err error)

	// SaveCheckpoint writes a named save slot, overwriting any previous one.
	SaveCheckpoint(ctx context.Context, slot string, state S, tick int) error

	// LoadCheckpoint reads a named save slot.
	// Returns ErrNotFound if the slot does not exist.
	LoadCheckpoint(ctx context.Context, slot string) (state S, tick int, err error)

	// ListCheckpoints returns the names of all save slots in sorted order.
	ListCheckpoints(ctx context.Context) ([]string, error)

	// DeleteCheckpoint removes a save slot. Deleting a missing slot returns
	// ErrNotFound.
	DeleteCheckpoint(ctx context.Context, slot string) error
}

// StepRecord is one autosave entry in a session's history.
type StepRecord[S any] struct {
	Tick    int    `json:"tick"`
	BlockID string `json:"block_id"`
	State   S      `json:"state"`
}

// Checkpoint is a named save slot.
type Checkpoint[S any] struct {
	ID    string `json:"id"`
	State S      `json:"state"`
	Tick  int    `json:"tick"`
}
