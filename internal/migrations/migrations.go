package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the schema for device state, order history and admin accounts.
// Statements are portable between SQLite and PostgreSQL.
func Run(db *sqlx.DB) error {
	identity := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "pgx" {
		identity = "BIGSERIAL PRIMARY KEY"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS device_state (
            scope TEXT NOT NULL,
            state_key TEXT NOT NULL,
            value TEXT NOT NULL,
            expires_at BIGINT,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (scope, state_key)
        );`,
		`CREATE TABLE IF NOT EXISTS admins (
            id ` + identity + `,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS order_history (
            id ` + identity + `,
            device_id TEXT NOT NULL,
            pharmacy_id BIGINT NOT NULL,
            pharmacy_name TEXT NOT NULL,
            backend_id BIGINT,
            total TEXT NOT NULL,
            item_count BIGINT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS order_history_device_idx ON order_history (device_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
