package goosemigrate

import (
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Migrator struct {
	postgresURL string
	migrations  fs.FS
	schemaName  string
}

// NewMigrator runs the *.sql files found at the root of migrations.
func NewMigrator(postgresURL string, migrations fs.FS, schemaName string) *Migrator {
	return &Migrator{
		postgresURL: postgresURL,
		migrations:  migrations,
		schemaName:  schemaName,
	}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.migrations)
	goose.SetTableName(m.schemaName + "." + "migrations")

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return nil
}

func (m *Migrator) Up() error {
	if err := m.prepare(); err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("postgres", m.postgresURL)
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}
	defer db.Close()

	if _, err = db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", m.schemaName)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err = goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to up migrations: %w", err)
	}

	return nil
}

func (m *Migrator) Down() error {
	if err := m.prepare(); err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver("postgres", m.postgresURL)
	if err != nil {
		return fmt.Errorf("failed to open DB for migration: %w", err)
	}
	defer db.Close()

	if err = goose.Reset(db, "."); err != nil {
		return fmt.Errorf("failed to down migrations: %w", err)
	}

	if _, err = db.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", m.schemaName)); err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}

	return nil
}
