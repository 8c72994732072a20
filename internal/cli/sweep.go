package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/voice-audit/internal/audit"
)

func newSweepCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Abandon sessions idle for longer than --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			n, err := a.Audit.SweepAbandoned(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "abandoned %d sessions\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", audit.DefaultSweepThreshold, "idle time after which a session is abandoned")
	return cmd
}
