package migrations

import (
	"database/sql"
)

// GetInitialMigrations returns the migrations that create the entity table.
// Every entity kind shares one table: rows are keyed by (entity_kind,
// entity_key) and seq preserves insertion order for Load.
func GetInitialMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_entities_table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS entities (
						seq INTEGER PRIMARY KEY AUTOINCREMENT,
						entity_kind TEXT NOT NULL,
						entity_key TEXT NOT NULL,
						payload TEXT NOT NULL,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
						UNIQUE (entity_kind, entity_key)
					)
				`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				_, err := tx.Exec(`DROP TABLE IF EXISTS entities`)
				return err
			},
		},
	}
}
