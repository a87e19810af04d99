// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/credauth/internal/config"
	"github.com/holomush/credauth/internal/store"
)

// Migrator is the part of store.Migrator the migrate commands use.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// migratorFactory opens a Migrator for a database url.
type migratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory)
}

func newMigrateCmd(factory migratorFactory) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the accounts schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
The database url comes from --database-url, the config file or
CREDAUTH_STORE__DSN.`,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")

	// withMigrator resolves the url, opens a migrator and always closes it.
	withMigrator := func(fn func(Migrator) error) (err error) {
		dsn := databaseURL
		if dsn == "" {
			cfg, readErr := config.Read(configFile, nil)
			if readErr != nil {
				return readErr
			}
			dsn = cfg.Store.DSN
		}
		if dsn == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "store.dsn").
				Errorf("a database url is required (--database-url or CREDAUTH_STORE__DSN)")
		}

		m, err := factory(dsn)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(m)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations applied")
				return printStatus(cmd, m)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				var err error
				if steps > 0 {
					err = m.Steps(-steps)
				} else {
					err = m.Down()
				}
				if err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return printStatus(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				return printStatus(cmd, m)
			})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty database recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	cmd.Printf("Current version: %d%s\n", st.Version, dirty)
	for _, v := range st.Applied {
		name, _ := store.MigrationName(v) //nolint:errcheck // name is cosmetic
		cmd.Printf("  applied  %s\n", name)
	}
	for _, v := range st.Pending {
		name, _ := store.MigrationName(v) //nolint:errcheck // name is cosmetic
		cmd.Printf("  pending  %s\n", name)
	}
	return nil
}
