package sqlstore

import (
	"context"
	"crypto/md5"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"renda-edge/internal/common/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationVersionRegex = regexp.MustCompile(`^(\d+)_.*\.sql$`)

// Migration is one versioned schema file.
type Migration struct {
	Version  string
	Filename string
	Content  string
	Checksum string
}

// Migrator applies the embedded migrations that match a dialect and records
// them in schema_migrations.
type Migrator struct {
	db      *sql.DB
	dialect dialect
	files   fs.FS
	logger  logging.Logger
}

func newMigrator(db *sql.DB, d dialect, logger logging.Logger) *Migrator {
	return &Migrator{db: db, dialect: d, files: migrationFiles, logger: logger}
}

// Run applies every pending migration in version order.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := m.load()
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var pending []Migration
	for _, mig := range migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	if len(pending) == 0 {
		m.logger.Debug("Database schema is up to date", logging.String("db_type", m.dialect.name))
		return nil
	}

	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.Version, err)
		}
	}
	m.logger.Info("Migrations applied",
		logging.String("db_type", m.dialect.name),
		logging.Int("count", len(pending)),
	)
	return nil
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL,
		checksum TEXT
	)`)
	return err
}

// compatible keeps files suffixed with the dialect name and generic files.
func (m *Migrator) compatible(filename string) bool {
	base := strings.TrimSuffix(filename, ".sql")
	for _, other := range []string{"sqlite", "postgres"} {
		if strings.HasSuffix(base, "_"+other) {
			return other == m.dialect.name
		}
	}
	return true
}

func (m *Migrator) load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !m.compatible(name) {
			continue
		}
		matches := migrationVersionRegex.FindStringSubmatch(name)
		if len(matches) < 2 {
			m.logger.Warn("Skipping file with invalid version format", logging.String("filename", name))
			continue
		}
		content, err := fs.ReadFile(m.files, "migrations/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version:  matches[1],
			Filename: name,
			Content:  string(content),
			Checksum: fmt.Sprintf("%x", md5.Sum(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		a, _ := strconv.Atoi(migrations[i].Version)
		b, _ := strconv.Atoi(migrations[j].Version)
		return a < b
	})
	return migrations, nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	m.logger.Info("Applying migration",
		logging.String("version", mig.Version),
		logging.String("filename", mig.Filename),
	)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.Content); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		m.dialect.rebind("INSERT INTO schema_migrations (version, filename, applied_at, checksum) VALUES (?, ?, ?, ?)"),
		mig.Version, mig.Filename, time.Now().UTC(), mig.Checksum,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
