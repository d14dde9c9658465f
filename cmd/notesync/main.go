// Command notesync reconciles per-run notes.yaml records with a summary
// table.
package main

import "github.com/mesh-intelligence/notesync/internal/cli"

func main() {
	cli.Execute()
}
