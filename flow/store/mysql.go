package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	upsertStep: `
		INSERT INTO story_steps (session_id, tick, block_id, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			block_id = VALUES(block_id),
			state = VALUES(state)
	`,
	upsertSlot: `
		INSERT INTO story_slots (slot_id, state, tick)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			tick = VALUES(tick)
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
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			tick INT NOT NULL,
			block_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_session_tick (session_id, tick),
			UNIQUE KEY unique_session_tick (session_id, tick)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS story_slots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			slot_id VARCHAR(255) NOT NULL UNIQUE,
			state JSON NOT NULL,
			tick INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	},
}

// MySQLStore is a MySQL/MariaDB implementation of Store[S] for saves shared
// between processes.
//
// DSN format:
//
//	user:password@tcp(localhost:3306)/storyflow?parseTime=true
//
// Do not hardcode credentials; read the DSN from the environment.
type MySQLStore[S any] struct {
	sqlStore[S]
}

// NewMySQLStore connects, verifies the connection and migrates the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore[S]{sqlStore: sqlStore[S]{db: db, dialect: mysqlDialect}}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Stats returns connection pool statistics.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}
