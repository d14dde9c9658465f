package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the notesync release.
const Version = "0.3.0"

const modulePath = "github.com/mesh-intelligence/notesync"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the notesync version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "notesync v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
