package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

func newUpdateCmd(a *app) *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Write summary table edits back into the run records",
		Long: `Update compares the summary table with the record files and writes every
differing cell back into its record file. Ids found on only one side are
ignored; record files are never created or deleted. Keys of a rewritten
record follow the column order of the summary table.

A yaml_empty cell writes an explicit null and a yaml_no_key or blank cell
deletes the key. Every rewritten file is first copied to <file>.bk.

Without --write the changes are only shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, a, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runUpdate(cmd *cobra.Command, a *app, flags *syncFlags) error {
	opts, err := flags.options(cmd, a.cfg)
	if err != nil {
		return err
	}
	e, err := a.openEnv(opts.Write)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.engine().Update(opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		report := syncReport{
			Direction:     types.DirectionUpdate,
			Written:       len(res.Written) > 0,
			OnlyInSummary: nonNil(res.OnlyInSummary),
			OnlyInFolders: nonNil(res.OnlyInFolders),
			Changes:       nonNil(res.Changes()),
			RunID:         res.RunID,
		}
		for _, wr := range res.Written {
			report.Backups = append(report.Backups, wr.Backup)
		}
		return writeJSON(w, report)
	}

	summaryName := a.cfg.SummaryFile
	fmt.Fprintf(w, "Loaded %s\n", summaryName)
	printIDs(w, fmt.Sprintf("The following ids are in %s but their folders are not found. These will be ignored:", summaryName), res.OnlyInSummary)
	printIDs(w, fmt.Sprintf("The following ids are in folders but not in %s. These will be ignored:", summaryName), res.OnlyInFolders)

	where := func(id string) string {
		return "./" + filepath.ToSlash(filepath.Join(id, a.cfg.RecordFile))
	}
	if err := printChanges(w, fmt.Sprintf("Changes in %s in each folder:", a.cfg.RecordFile), res.Changes(), where); err != nil {
		return err
	}

	switch {
	case !res.HasChanges():
		printNoChanges(w)
	case opts.Write:
		printWritten(w, fmt.Sprintf("Updated %d %s files", len(res.Written), a.cfg.RecordFile), res.RunID)
	default:
		printPreview(w, "the record files", cmd.CommandPath())
	}
	return nil
}
