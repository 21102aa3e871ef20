package migrations

import (
	"database/sql"
)

// GetPerformanceMigrations returns index migrations for the entity table
func GetPerformanceMigrations() []Migration {
	return []Migration{
		{
			Version: 10,
			Name:    "add_entity_indices",
			Up: func(tx *sql.Tx) error {
				indices := []string{
					"CREATE INDEX IF NOT EXISTS idx_entities_kind_seq ON entities(entity_kind, seq)",
					"CREATE INDEX IF NOT EXISTS idx_entities_updated_at ON entities(updated_at)",
				}

				for _, indexSQL := range indices {
					if _, err := tx.Exec(indexSQL); err != nil {
						return err
					}
				}

				return nil
			},
			Down: func(tx *sql.Tx) error {
				indices := []string{
					"DROP INDEX IF EXISTS idx_entities_kind_seq",
					"DROP INDEX IF EXISTS idx_entities_updated_at",
				}

				for _, dropSQL := range indices {
					if _, err := tx.Exec(dropSQL); err != nil {
						return err
					}
				}

				return nil
			},
		},
	}
}
