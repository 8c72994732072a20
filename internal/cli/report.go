package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-token>",
		Short: "Print the insight report of a completed session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.Audit.Repo().GetSessionByToken(ctx, args[0])
			if err != nil {
				return fmt.Errorf("session %q: %w", args[0], err)
			}
			report, err := a.Insights.Report(ctx, sess)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
