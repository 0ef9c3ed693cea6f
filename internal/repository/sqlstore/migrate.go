package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"telemt-admin/internal/logger"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema files for the active dialect in
// lexical order, recording each in schema_migrations.
type Migrator struct {
	db *DB
	fs fs.FS
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db, fs: migrationFiles}
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	files, err := fs.Glob(m.fs, path.Join(m.db.Dialect.MigrationsDir(), "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, file := range files {
		id := path.Base(file)
		if applied[id] {
			continue
		}

		content, err := fs.ReadFile(m.fs, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", id, err)
		}
		if err := m.applyOne(ctx, id, string(content)); err != nil {
			return err
		}
		logger.Info("Migration applied", "id", id, "dialect", m.db.Dialect.Name())
	}
	return nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id TEXT PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (m *Migrator) applyOne(ctx context.Context, id, sqlText string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(sqlText) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", id, err)
		}
	}

	record := m.db.Dialect.RewriteQuery(`INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, record, id, time.Now().Unix()); err != nil {
		return fmt.Errorf("record migration %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", id, err)
	}
	return nil
}

// splitStatements drops line comments and splits on semicolons. The schema
// files contain no string literals with semicolons.
func splitStatements(sqlText string) []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(cleaned.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
