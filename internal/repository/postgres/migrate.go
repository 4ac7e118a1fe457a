package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// Migrate applies every *.up.sql file in dir in name order. The shipped
// migrations are idempotent, so running them against an existing database
// is safe.
func Migrate(ctx context.Context, db *sql.DB, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return 0, fmt.Errorf("find migrations: %w", err)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no migrations in %s", dir)
	}
	sort.Strings(paths)

	for _, p := range paths {
		stmt, err := os.ReadFile(p)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", filepath.Base(p), err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return 0, fmt.Errorf("run migration %s: %w", filepath.Base(p), err)
		}
		log.Debug().Str("migration", filepath.Base(p)).Msg("Applied migration")
	}
	return len(paths), nil
}
