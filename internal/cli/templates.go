package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List templates with their completion statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			list, err := a.Audit.ListTemplates(ctx, !all)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s  %-32s  %9s  %8s  %10s  %8s\n", "ID", "NAME", "QUESTIONS", "SESSIONS", "COMPLETION", "AVG MIN")
			for _, t := range list {
				st, err := a.Audit.TemplateStats(ctx, t.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-4d  %-32s  %9d  %8d  %9.1f%%  %8.1f\n",
					t.ID, t.Name, st.TotalQuestions, st.TotalSessions, st.CompletionRate, st.AverageCompletionMinutes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive templates")
	return cmd
}
