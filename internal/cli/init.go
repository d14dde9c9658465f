package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file and the history ledger",
		Long: `Init writes a default config.yaml to the configuration directory if none
exists and, when history is enabled, creates the history ledger in the
data directory. Running init again changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a)
		},
	}
}

func runInit(cmd *cobra.Command, a *app) error {
	w := cmd.OutOrStdout()

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	path, created, err := writeConfigIfMissing(configDir)
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}
	if created {
		fmt.Fprintf(w, "Wrote %s\n", path)
	} else {
		fmt.Fprintf(w, "Using existing %s\n", path)
	}

	if !a.cfg.History {
		fmt.Fprintln(w, "History is disabled")
		return nil
	}
	backend, err := a.openLedger()
	if err != nil {
		return err
	}
	dbPath := backend.Path()
	if err := backend.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize history: %w", err))
	}
	fmt.Fprintf(w, "History ledger at %s\n", dbPath)
	return nil
}
