package cmd

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"sailboat/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

// getDSN builds the postgres URL golang-migrate expects. Credentials are
// escaped so passwords with reserved characters survive.
func getDSN(dbConfig config.Database) string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbConfig.User, dbConfig.Password),
		Host:     dbConfig.Host + ":" + strconv.Itoa(dbConfig.Port),
		Path:     "/" + dbConfig.DBName,
		RawQuery: url.Values{"sslmode": {dbConfig.SSLMode}}.Encode(),
	}
	return dsn.String()
}

func withMigrator(fn func(m *migrate.Migrate) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	m, err := migrate.New("file://"+migrationsPath, getDSN(cfg.DB))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Printf("Migration source error on close: %v\n", srcErr)
		}
		if dbErr != nil {
			log.Printf("Migration database error on close: %v\n", dbErr)
		}
	}()
	return fn(m)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all available database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := ignoreNoChange(m.Up()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Applied migrations successfully.")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert database migrations, one step by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		if downSteps < 1 {
			return fmt.Errorf("--steps must be at least 1, got %d", downSteps)
		}
		return withMigrator(func(m *migrate.Migrate) error {
			if err := ignoreNoChange(m.Steps(-downSteps)); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Reverted %d migration(s) successfully.\n", downSteps)
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version of the registry tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Println("No migrations applied.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Schema version %d (dirty: %t)\n", version, dirty)
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the schedule registry, trigger state and execution record tables",
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "directory holding the migration files")
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to revert")
	migrateCmd.AddCommand(upCmd)
	migrateCmd.AddCommand(downCmd)
	migrateCmd.AddCommand(versionCmd)
}
