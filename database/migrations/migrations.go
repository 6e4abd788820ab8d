package migrations

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var files embed.FS

// Apply runs the schema for the given driver. Every statement is idempotent.
func Apply(ctx context.Context, db *sqlx.DB, driver string) error {
	name := "postgres.sql"
	if driver == "sqlite" {
		name = "sqlite.sql"
	}

	raw, err := files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}

	return nil
}
