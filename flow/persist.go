package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/storyflow/flow/store"
)

// Save returns the save payload: block states, seed, checkpoint and the
// persisted visit tier.
func (i *Interpreter) Save() SaveData {
	data := SaveData{
		Blocks:     make(map[string]*BlockState, len(i.blocks)),
		Seed:       i.seed,
		Checkpoint: i.checkpoint,
		Visits:     i.StoredVisits(),
	}
	for id, s := range i.blocks {
		data.Blocks[id] = s.clone()
	}
	return data
}

// SaveSlot writes the payload to a named slot of the configured store.
func (i *Interpreter) SaveSlot(ctx context.Context, slot string) error {
	if i.store == nil {
		return ErrNoStore
	}
	if !i.started {
		return ErrNotStarted
	}
	if i.checkpoint == "" {
		return ErrNoCheckpoint
	}
	if err := i.store.SaveCheckpoint(ctx, slot, i.Save(), i.tick); err != nil {
		return fmt.Errorf("failed to save slot %q: %w", slot, err)
	}
	return nil
}

// LoadSlot resumes from a named slot of the configured store. The tick
// never moves behind the session's autosave history, so ResumeLatest picks
// up the playthrough continued from the slot rather than an abandoned one.
func (i *Interpreter) LoadSlot(ctx context.Context, slot string) error {
	if i.store == nil {
		return ErrNoStore
	}
	data, tick, err := i.store.LoadCheckpoint(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to load slot %q: %w", slot, err)
	}
	if err := i.Resume(ctx, data); err != nil {
		return err
	}
	if tick > i.tick {
		i.tick = tick
	}
	return nil
}

// ResumeLatest resumes from the newest autosave of the session.
func (i *Interpreter) ResumeLatest(ctx context.Context) error {
	if i.store == nil {
		return ErrNoStore
	}
	data, tick, err := i.store.LoadLatest(ctx, i.session)
	if err != nil {
		return fmt.Errorf("failed to load session %q: %w", i.session, err)
	}
	if err := i.Resume(ctx, data); err != nil {
		return err
	}
	if tick > i.tick {
		i.tick = tick
	}
	return nil
}

// continueHistory moves the tick past the newest autosave of the session so
// a new or reloaded playthrough never writes below history it replaces.
func (i *Interpreter) continueHistory() {
	if !i.autosave {
		return
	}
	_, tick, err := i.store.LoadLatest(i.ctx, i.session)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			i.logger.Warn("failed to read autosave history", "session", i.session, "error", err)
		}
		return
	}
	if tick > i.tick {
		i.tick = tick
	}
}
