package main

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"twol-crm/internal/config"
	"twol-crm/internal/database"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

var pg *database.Postgres

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for the permission set store",
	Long: `Database migration tool for the permission set store.
Applies the embedded PostgreSQL migrations using golang-migrate.`,
	PersistentPreRunE: setupDatabase,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No migrations to apply")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration up failed: %w", err)
			}
			log.Println("Migration up completed successfully")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid steps %q", args[0])
			}
			steps = n
		}

		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Steps(-steps)
			if errors.Is(err, migrate.ErrNoChange) {
				log.Println("No migrations to rollback")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration down failed: %w", err)
			}
			log.Printf("Rolled back %d migration(s)", steps)
			return nil
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}

		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Migrate(uint(version))
			if errors.Is(err, migrate.ErrNoChange) {
				log.Printf("Already at version %d", version)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration goto failed: %w", err)
			}
			log.Printf("Migrated to version %d", version)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Println("Current version: No migrations applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			if dirty {
				log.Printf("Current version: %d (dirty - migration may have failed)", version)
			} else {
				log.Printf("Current version: %d", version)
			}
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}

		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Force(version); err != nil {
				return fmt.Errorf("migration force failed: %w", err)
			}
			log.Printf("Migration forced to version %d", version)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, versionCmd, forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pg, err = database.OpenPostgres(cfg.DatabaseURL, 2)
	if err != nil {
		return err
	}
	log.Println("Connected to Postgres")
	return nil
}

func withMigrator(fn func(m *migrate.Migrate) error) error {
	m, err := pg.Migrator()
	if err != nil {
		return err
	}
	// also closes the pool
	defer m.Close()
	return fn(m)
}
