package database

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"user-api/pkg/logger"

	"gorm.io/gorm"
)

type Migration struct {
	ID          string
	Description string
	SQL         string
	AppliedAt   *time.Time
}

type MigrationRunner struct {
	db         *gorm.DB
	migrations fs.FS
}

// NewMigrationRunner applies the *.sql files found at the root of migrations.
// File names follow <id>_<description>.sql and run in lexical order.
func NewMigrationRunner(db *gorm.DB, migrations fs.FS) *MigrationRunner {
	return &MigrationRunner{
		db:         db,
		migrations: migrations,
	}
}

func (mr *MigrationRunner) createMigrationsTable() error {
	sql := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id VARCHAR(255) PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);`

	return mr.db.Exec(sql).Error
}

func (mr *MigrationRunner) getAppliedMigrations() (map[string]bool, error) {
	var ids []string
	err := mr.db.Raw("SELECT id FROM schema_migrations ORDER BY id").Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}

	return applied, nil
}

// LoadMigrations reads and orders every migration file
func (mr *MigrationRunner) LoadMigrations() ([]*Migration, error) {
	entries, err := fs.ReadDir(mr.migrations, ".")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	migrations := make([]*Migration, 0, len(files))
	for _, file := range files {
		migration, err := mr.readMigrationFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		migrations = append(migrations, migration)
	}
	return migrations, nil
}

func (mr *MigrationRunner) readMigrationFile(filePath string) (*Migration, error) {
	content, err := fs.ReadFile(mr.migrations, filePath)
	if err != nil {
		return nil, err
	}

	filename := path.Base(filePath)
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid migration filename format: %s", filename)
	}

	description := strings.TrimSuffix(parts[1], ".sql")
	description = strings.ReplaceAll(description, "_", " ")

	return &Migration{
		ID:          parts[0],
		Description: description,
		SQL:         string(content),
	}, nil
}

// RunMigrations applies pending migrations, each in its own transaction,
// and returns how many were applied
func (mr *MigrationRunner) RunMigrations() (int, error) {
	if err := mr.createMigrationsTable(); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.getAppliedMigrations()
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := mr.LoadMigrations()
	if err != nil {
		return 0, err
	}

	pendingCount := 0
	for _, migration := range migrations {
		if applied[migration.ID] {
			continue
		}

		err = mr.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(migration.SQL).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migration.ID, err)
			}

			if err := tx.Exec("INSERT INTO schema_migrations (id, description) VALUES (?, ?)",
				migration.ID, migration.Description).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", migration.ID, err)
			}

			return nil
		})
		if err != nil {
			return pendingCount, err
		}

		logger.Info("Applied migration: %s - %s", migration.ID, migration.Description)
		pendingCount++
	}

	return pendingCount, nil
}

func (mr *MigrationRunner) GetMigrationStatus() ([]*Migration, error) {
	if err := mr.createMigrationsTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.getAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := mr.LoadMigrations()
	if err != nil {
		return nil, err
	}

	for _, migration := range migrations {
		if !applied[migration.ID] {
			continue
		}

		var appliedAt time.Time
		err := mr.db.Raw("SELECT applied_at FROM schema_migrations WHERE id = ?", migration.ID).Row().Scan(&appliedAt)
		if err == nil {
			migration.AppliedAt = &appliedAt
		}
	}

	return migrations, nil
}
