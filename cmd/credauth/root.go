// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/credauth/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the credauth CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credauth",
		Short: "credauth - email and password authentication service",
		Long: `credauth manages user accounts: signup with email verification,
password and Google sign-in, password reset and signed session cookies.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			if configFile == "" {
				configFile = xdg.DefaultConfigFile()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/credauth/config.yaml if present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration (missing file is ignored)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadEnvFile exports the variables of a dotenv file without overriding
// variables already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_ENV_FILE_INVALID").With("path", path).Wrap(err)
	}
	return nil
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("credauth %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
