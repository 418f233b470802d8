package database

import (
	"context"
	"fmt"
	"io/fs"
	"slices"

	"github.com/jackc/pgx/v5"
)

// migrationFiles returns the embedded scripts for one direction in the order
// they must run: ascending for "up", descending for "down".
func migrationFiles(direction string) ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*."+direction+".sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	if direction == "down" {
		slices.Reverse(names)
	}
	return names, nil
}

func applyScripts(ctx context.Context, conn *pgx.Conn, direction string) error {
	names, err := migrationFiles(direction)
	if err != nil {
		return err
	}
	for _, name := range names {
		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// MigrateUp runs every up script on conn without recording a schema
// version. Servers use NewFromConnectionString; this is for tests that own a
// throwaway database.
func MigrateUp(ctx context.Context, conn *pgx.Conn) error {
	return applyScripts(ctx, conn, "up")
}

// MigrateDown runs every down script on conn, newest first.
func MigrateDown(ctx context.Context, conn *pgx.Conn) error {
	return applyScripts(ctx, conn, "down")
}
