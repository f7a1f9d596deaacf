package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pscprep/examengine/config"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
  k    TEXT PRIMARY KEY,
  s    TEXT,
  n    REAL,
  kind INTEGER NOT NULL
);
`

// NewDatabase opens the embedded sqlite database backing the durable
// key-value store and ensures the schema exists.
func NewDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout(5000)", cfg.Storage.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", cfg.Storage.Path, err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
