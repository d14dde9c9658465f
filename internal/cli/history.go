package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/internal/paths"
	"github.com/mesh-intelligence/notesync/internal/sqlite"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

type historyFlags struct {
	limit     int
	record    string
	direction string
}

func newHistoryCmd(a *app) *cobra.Command {
	var flags historyFlags
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List applied writes or show the changes of one",
		Long: `History lists the writes applied by collect, update and modify, newest
first. With a run id (or a unique prefix of one) it shows that run's cell
changes.

Example:
  notesync history --limit 5
  notesync history --record run3
  notesync history 0190a1b2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch flags.direction {
			case "", types.DirectionCollect, types.DirectionUpdate, types.DirectionModify:
			default:
				return fmt.Errorf("invalid direction %q (valid: collect, update, modify): %w", flags.direction, errInvalidArgument)
			}
			if flags.limit < 0 {
				return fmt.Errorf("invalid limit %d: %w", flags.limit, errInvalidArgument)
			}

			backend, err := a.openLedger()
			if err != nil {
				return err
			}
			defer backend.Detach()

			if len(args) == 1 {
				return showRun(cmd.OutOrStdout(), a.flags.jsonMode, backend, args[0])
			}
			return listRuns(cmd.OutOrStdout(), a.flags.jsonMode, backend, types.RunFilter{
				RecordID:  flags.record,
				Direction: flags.direction,
				Limit:     flags.limit,
			})
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&flags.limit, "limit", "n", 20, "maximum number of runs to list (0: all)")
	fl.StringVar(&flags.record, "record", "", "only runs that changed this record id")
	fl.StringVar(&flags.direction, "direction", "", "only runs of this direction (collect, update, modify)")
	return cmd
}

// openLedger attaches the history ledger of the workspace for reading.
func (a *app) openLedger() (*sqlite.Backend, error) {
	root, err := paths.ResolveWorkspace(a.flags.dir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve workspace: %w", err))
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.DataDir, root)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(dataDir); err != nil {
		return nil, sysError(fmt.Errorf("attach history: %w", err))
	}
	return backend, nil
}

func listRuns(w io.Writer, jsonMode bool, backend types.Ledger, filter types.RunFilter) error {
	runs, err := backend.ListRuns(filter)
	if err != nil {
		return sysError(err)
	}
	if jsonMode {
		return writeJSON(w, nonNil(runs))
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No history.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Run", "Direction", "Changes", "Target", "When")
	for _, r := range runs {
		row := []string{r.RunID, r.Direction, strconv.Itoa(r.ChangeCount), r.Target, humanize.Time(r.CreatedAt)}
		if err := table.Append(row); err != nil {
			return sysError(fmt.Errorf("render history: %w", err))
		}
	}
	if err := table.Render(); err != nil {
		return sysError(fmt.Errorf("render history: %w", err))
	}
	return nil
}

func showRun(w io.Writer, jsonMode bool, backend types.Ledger, runID string) error {
	run, err := backend.GetRun(runID)
	if err != nil {
		return err
	}
	if jsonMode {
		return writeJSON(w, run)
	}

	fmt.Fprintf(w, "Run:       %s\n", run.RunID)
	fmt.Fprintf(w, "Direction: %s\n", run.Direction)
	fmt.Fprintf(w, "Workspace: %s\n", run.Root)
	fmt.Fprintf(w, "Target:    %s\n", run.Target)
	fmt.Fprintf(w, "Created:   %s (%s)\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt))
	return printChanges(w, fmt.Sprintf("%d changes:", run.ChangeCount), run.Changes, func(id string) string { return id })
}
