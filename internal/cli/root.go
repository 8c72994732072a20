// Package cli defines the auditctl operator commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/voice-audit/internal/app"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/db"
)

var version = "dev" // set via ldflags at build time

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Operate the voice audit service",
		Long:          `auditctl migrates the database, seeds templates, sweeps idle sessions and prints audit reports.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newSweepCmd(), newReportCmd(), newTemplatesCmd())
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open connects with the environment configuration and migrates the schema.
func open() (*app.App, error) {
	cfg := config.Load()
	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return app.New(cfg, gdb, app.Options{})
}
