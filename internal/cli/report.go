package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

var (
	previewStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	writeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	headingStyle = lipgloss.NewStyle().Bold(true)
)

const rule = 80

// syncReport is the --json form of a collect, update or modify result.
type syncReport struct {
	Direction     string         `json:"direction"`
	Written       bool           `json:"written"`
	OnlyInSummary []string       `json:"only_in_summary"`
	OnlyInFolders []string       `json:"only_in_folders"`
	Changes       []types.Change `json:"changes"`
	Backups       []string       `json:"backups,omitempty"`
	RunID         string         `json:"run_id,omitempty"`
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal output: %w", err))
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printIDs prints a heading followed by a numbered id list.
func printIDs(w io.Writer, heading string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(heading))
	for i, id := range ids {
		fmt.Fprintf(w, "%d: %s\n", i+1, id)
	}
}

// printChanges renders changes as a table of record, column, old and new
// values. where names the changed file of a record.
func printChanges(w io.Writer, heading string, changes []types.Change, where func(id string) string) error {
	if len(changes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(heading))

	table := tablewriter.NewWriter(w)
	table.Header("Record", "Column", "Old", "New")
	for _, c := range changes {
		if err := table.Append([]string{where(c.RecordID), c.Column, c.Old, c.New}); err != nil {
			return sysError(fmt.Errorf("render changes: %w", err))
		}
	}
	if err := table.Render(); err != nil {
		return sysError(fmt.Errorf("render changes: %w", err))
	}
	return nil
}

// printPreview tells the user that nothing was written and how to apply
// the changes.
func printPreview(w io.Writer, target, command string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", rule))
	fmt.Fprintln(w, previewStyle.Render(fmt.Sprintf("Preview mode. No changes have been written to %s.", target)))
	fmt.Fprintln(w, "To apply these changes, run the command with --write:")
	fmt.Fprintf(w, "  %s --write\n", command)
	fmt.Fprintln(w, strings.Repeat("=", rule))
}

// printWritten reports an applied write.
func printWritten(w io.Writer, msg, runID string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, writeStyle.Render(msg))
	if runID != "" {
		fmt.Fprintf(w, "History run: %s\n", runID)
	}
}

func printNoChanges(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "No changes detected.")
}
