package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	upsertStep: `
		INSERT INTO story_steps (session_id, tick, block_id, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, tick) DO UPDATE SET
			block_id = excluded.block_id,
			state = excluded.state
	`,
	upsertSlot: `
		INSERT INTO story_slots (slot_id, state, tick)
		VALUES (?, ?, ?)
		ON CONFLICT(slot_id) DO UPDATE SET
			state = excluded.state,
			tick = excluded.tick,
			updated_at = CURRENT_TIMESTAMP
	`,
	selectLatest: `
		SELECT tick, state
		FROM story_steps
		WHERE session_id = ?
		ORDER BY tick DESC
		LIMIT 1
	`,
	selectSlot:    `SELECT state, tick FROM story_slots WHERE slot_id = ?`,
	selectSlotIDs: `SELECT slot_id FROM story_slots ORDER BY slot_id`,
	deleteSlot:    `DELETE FROM story_slots WHERE slot_id = ?`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS story_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			block_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, tick)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_story_steps_session ON story_steps(session_id, tick)`,
		`CREATE TABLE IF NOT EXISTS story_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slot_id TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL,
			tick INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	},
}

// SQLiteStore is a single-file SQLite implementation of Store[S].
//
// The database is created and migrated on open and runs in WAL mode.
// Use ":memory:" for a throwaway database.
//
//	st, err := store.NewSQLiteStore[flow.SaveData]("./saves.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
type SQLiteStore[S any] struct {
	sqlStore[S]
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &SQLiteStore[S]{
		sqlStore: sqlStore[S]{db: db, dialect: sqliteDialect},
		path:     path,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}
