package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withDatabase(func(conn *db.DB) error {
			if err := conn.RunMigrations(); err != nil {
				return err
			}
			return printVersion(conn)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back the given number of migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		return withDatabase(func(conn *db.DB) error {
			if err := conn.RollbackMigrations(steps); err != nil {
				return err
			}
			return printVersion(conn)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withDatabase(printVersion)
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withDatabase(fn func(*db.DB) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

func printVersion(conn *db.DB) error {
	version, dirty, err := conn.MigrationVersion()
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Println("schema version: none")
		return nil
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Printf("schema version: %d (%s)\n", version, state)
	return nil
}
