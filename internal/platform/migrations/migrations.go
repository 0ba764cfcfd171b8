// Package migrations embeds the BeanHop schema and applies it in order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

// Execer is satisfied by *sql.DB, *sql.Tx and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migration is one embedded schema file.
type Migration struct {
	Name string
	SQL  string
}

// List returns the embedded migrations sorted by file name.
func List() ([]Migration, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Name: path.Base(name), SQL: string(data)})
	}
	return out, nil
}

// Option tunes Apply.
type Option func(*applyOptions)

type applyOptions struct {
	skipRLS bool
	onApply func(name string)
}

// SkipRowLevelSecurity skips the *_rls.sql files, which depend on the
// Supabase auth schema and fail on a plain Postgres.
func SkipRowLevelSecurity() Option {
	return func(o *applyOptions) { o.skipRLS = true }
}

// OnApply registers a callback invoked after each migration succeeds.
func OnApply(fn func(name string)) Option {
	return func(o *applyOptions) { o.onApply = fn }
}

// Apply executes every embedded migration in order. The files are idempotent,
// so Apply can run against an already-migrated database.
func Apply(ctx context.Context, db Execer, opts ...Option) error {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	migrations, err := List()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if o.skipRLS && strings.HasSuffix(m.Name, "_rls.sql") {
			continue
		}
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if o.onApply != nil {
			o.onApply(m.Name)
		}
	}
	return nil
}

// SetupSQL returns every migration concatenated into one script suitable for
// pasting into the Supabase SQL editor.
func SetupSQL() (string, error) {
	migrations, err := List()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("-- Run this SQL in your Supabase SQL Editor\n\n")
	b.WriteString("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\";\n")
	for _, m := range migrations {
		fmt.Fprintf(&b, "\n-- %s\n", m.Name)
		b.WriteString(strings.TrimSpace(m.SQL))
		b.WriteString("\n")
	}
	return b.String(), nil
}
