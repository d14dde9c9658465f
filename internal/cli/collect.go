package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

func newCollectCmd(a *app) *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect the run records into the summary table",
		Long: `Collect reads the record file of every run<N> and template* directory and
merges them into the summary table. Rows whose directories no longer exist
are kept as they are; no row is ever removed.

Without --write the changes are only shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, a, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runCollect(cmd *cobra.Command, a *app, flags *syncFlags) error {
	opts, err := flags.options(cmd, a.cfg)
	if err != nil {
		return err
	}
	e, err := a.openEnv(opts.Write)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.engine().Collect(opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		report := syncReport{
			Direction:     types.DirectionCollect,
			Written:       res.Written,
			OnlyInSummary: nonNil(res.Kept),
			OnlyInFolders: nonNil(res.Added),
			Changes:       nonNil(res.Changes()),
			RunID:         res.RunID,
		}
		if res.Backup != "" {
			report.Backups = []string{res.Backup}
		}
		return writeJSON(w, report)
	}

	summaryName := a.cfg.SummaryFile
	if res.Found {
		fmt.Fprintf(w, "Found existing %s\n", summaryName)
	} else {
		fmt.Fprintf(w, "No existing %s found, will create one\n", summaryName)
	}
	printIDs(w, fmt.Sprintf("The following ids are in %s but their folders are not found. These will be kept as is:", summaryName), res.Kept)
	printIDs(w, fmt.Sprintf("New entries found, the following ids will be added to %s:", summaryName), res.Added)

	changes := res.Changes()[len(res.Added):]
	if err := printChanges(w, fmt.Sprintf("Changes in the existing %s:", summaryName), changes, func(id string) string { return id }); err != nil {
		return err
	}

	switch {
	case !res.HasChanges():
		printNoChanges(w)
	case res.Written:
		msg := fmt.Sprintf("Results saved to %s", summaryName)
		if res.Backup != "" {
			msg += fmt.Sprintf(" (backup: %s)", res.Backup)
		}
		printWritten(w, msg, res.RunID)
	default:
		printPreview(w, summaryName, cmd.CommandPath())
	}
	return nil
}

// nonNil keeps empty lists as [] in JSON output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
