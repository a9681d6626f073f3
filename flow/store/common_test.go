package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// testSave mirrors the shape of an interpreter save payload.
type testSave struct {
	Checkpoint string         `json:"checkpoint"`
	Seed       string         `json:"seed"`
	Visits     map[string]int `json:"visits,omitempty"`
}

// testStoreContract exercises the behavior every Store implementation shares.
// Session and slot names are suffixed so that shared databases can be reused
// between runs.
func testStoreContract(t *testing.T, st Store[testSave]) {
	t.Helper()
	ctx := context.Background()
	suffix := fmt.Sprintf("-%d", time.Now().UnixNano())
	session := "session" + suffix

	t.Run("LoadLatest on unknown session", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "missing"+suffix)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("LoadLatest returns highest tick", func(t *testing.T) {
		saves := []struct {
			tick  int
			block string
			cp    string
		}{
			{1, "intro", "intro.0"},
			{5, "choice", "choice.0"},
			{3, "intro", "intro.2"},
		}
		for _, s := range saves {
			if err := st.SaveStep(ctx, session, s.tick, s.block, testSave{Checkpoint: s.cp, Seed: "s1"}); err != nil {
				t.Fatalf("SaveStep(%d) failed: %v", s.tick, err)
			}
		}

		got, tick, err := st.LoadLatest(ctx, session)
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if tick != 5 {
			t.Errorf("expected tick 5, got %d", tick)
		}
		if got.Checkpoint != "choice.0" {
			t.Errorf("expected checkpoint choice.0, got %q", got.Checkpoint)
		}
	})

	t.Run("SaveStep on same tick replaces", func(t *testing.T) {
		if err := st.SaveStep(ctx, session, 5, "choice", testSave{Checkpoint: "choice.1"}); err != nil {
			t.Fatalf("SaveStep failed: %v", err)
		}
		got, _, err := st.LoadLatest(ctx, session)
		if err != nil {
			t.Fatalf("LoadLatest failed: %v", err)
		}
		if got.Checkpoint != "choice.1" {
			t.Errorf("expected replaced checkpoint choice.1, got %q", got.Checkpoint)
		}
	})

	t.Run("save slots round trip", func(t *testing.T) {
		slot := "quick" + suffix
		want := testSave{Checkpoint: "ending.0", Seed: "abc", Visits: map[string]int{"ending": 1}}
		if err := st.SaveCheckpoint(ctx, slot, want, 9); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}

		got, tick, err := st.LoadCheckpoint(ctx, slot)
		if err != nil {
			t.Fatalf("LoadCheckpoint failed: %v", err)
		}
		if tick != 9 {
			t.Errorf("expected tick 9, got %d", tick)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %+v, got %+v", want, got)
		}

		slots, err := st.ListCheckpoints(ctx)
		if err != nil {
			t.Fatalf("ListCheckpoints failed: %v", err)
		}
		found := false
		for _, s := range slots {
			if s == slot {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q in %v", slot, slots)
		}

		if err := st.DeleteCheckpoint(ctx, slot); err != nil {
			t.Fatalf("DeleteCheckpoint failed: %v", err)
		}
		if _, _, err := st.LoadCheckpoint(ctx, slot); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := st.DeleteCheckpoint(ctx, slot); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("overwriting a slot keeps latest", func(t *testing.T) {
		slot := "slot-1" + suffix
		_ = st.SaveCheckpoint(ctx, slot, testSave{Checkpoint: "a"}, 1)
		_ = st.SaveCheckpoint(ctx, slot, testSave{Checkpoint: "b"}, 2)

		got, tick, err := st.LoadCheckpoint(ctx, slot)
		if err != nil {
			t.Fatalf("LoadCheckpoint failed: %v", err)
		}
		if got.Checkpoint != "b" || tick != 2 {
			t.Errorf("expected (b, 2), got (%s, %d)", got.Checkpoint, tick)
		}
		_ = st.DeleteCheckpoint(ctx, slot)
	})
}
