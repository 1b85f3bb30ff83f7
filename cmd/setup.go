package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/eventory/internal/shared"
)

// SetupConfig writes the built-in config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.google client_id and client_secret (or EVENTORY_GOOGLE_* in .env)\n")
	r.writePlain("2. Set server.session_secret\n")
	r.writePlain("3. Run 'eventory setup database'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "driver", r.config.Database.Driver)

	db, err := r.database()
	if err != nil {
		return err
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db.DB, r.config.Database.Driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := shared.MigrationVersion(db.DB, r.config.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.DSN)
	r.writePlain("✓ Database ready (schema version %d)\n", version)
	return nil
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	if err := shared.RollbackMigration(db.DB, r.config.Database.Driver); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	version, err := shared.MigrationVersion(db.DB, r.config.Database.Driver)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	r.writePlain("✓ Rolled back to schema version %d\n", version)
	return nil
}
