package main

import (
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/conductor-hq/conductor/migrations"
)

// migrateUp applies all pending embedded migrations.
func (app *application) migrateUp() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.Up(app.db, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	app.logger.Info("migrations applied")
	return nil
}

// migrateDown rolls back the most recent migration.
func (app *application) migrateDown() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := goose.Down(app.db, "."); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	app.logger.Info("migration rolled back")
	return nil
}
