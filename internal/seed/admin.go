package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureAdmin creates the configured admin account when it does not exist.
// An empty email or password disables the seed.
func EnsureAdmin(ctx context.Context, db *sqlx.DB, email, password string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Warn("admin account not seeded: ADMIN_EMAIL or ADMIN_PASSWORD missing")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	res, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO admins (email, password) VALUES (?, ?) ON CONFLICT (email) DO NOTHING`), email, string(hash))
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("seeded admin account", zap.String("email", email))
	}
	return nil
}
