package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/internal/scaffold"
)

func newNewRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "newrun <template_dir>",
		Short: "Create the next run directory from a template",
		Long: `Newrun copies template_dir to run<N>, where N is one more than the highest
existing run index, and sets the id in the copied record file to run<N>.
Symbolic links are copied as links.

Example:
  notesync newrun template_base`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEnv(false)
			if err != nil {
				return err
			}
			defer e.close()

			name, err := scaffold.NewRun(e.ws, args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"template": args[0],
					"run":      name,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully created new run directory: %s\n", name)
			return nil
		},
	}
}
