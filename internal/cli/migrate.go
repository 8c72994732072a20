package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/voice-audit/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := open(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(db.Models()))
			return nil
		},
	}
}
