package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/voice-audit/internal/templates"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import audit templates from YAML",
		Long: `Import audit templates and their questions. Without --file the
built-in Daily Reflection and Small Business Health Check templates are used.
Templates whose name already exists are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}

			var f *templates.File
			if file != "" {
				f, err = templates.Load(file)
			} else {
				f, err = templates.Builtin()
			}
			if err != nil {
				return err
			}

			res, err := templates.Seed(cmd.Context(), a.Audit, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "templates created=%d skipped=%d\n", res.Created, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with templates")
	return cmd
}
