// Package cli implements the notesync command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	dir       string
	logLevel  string
	logFormat string
	jsonMode  bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags   rootFlags
	v       *viper.Viper
	cfg     types.Config
	started bool
}

// NewRootCmd creates the top-level "notesync" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "notesync",
		Short: "Reconcile per-run notes.yaml records with notes_summary.csv",
		Long: `notesync keeps the notes.yaml record in every run<N> and template*
directory in sync with one flat notes_summary.csv table.

collect gathers the records into the summary, update writes summary edits
back into the records, and newrun scaffolds a new run directory from a
template. Every write is a preview unless --write is given.`,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.started = true
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/notesync)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "history data directory (default: <dir>/.notesync)")
	pf.StringVarP(&a.flags.dir, "dir", "C", "", "workspace directory holding the run directories (default: current directory)")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "logging level (trace, debug, info, warn, error, fatal)")
	pf.StringVar(&a.flags.logFormat, "log-format", "text", "logging format (text, json, color)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCollectCmd(a))
	root.AddCommand(newUpdateCmd(a))
	root.AddCommand(newNewRunCmd(a))
	root.AddCommand(newHistoryCmd(a))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root, a
}

// setup resolves the configuration directory, loads config.yaml and
// configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	v, err := loadConfig(a.flags.configDir)
	if err != nil {
		return sysError(err)
	}
	a.v = v
	if err := bindGlobalFlags(v, cmd); err != nil {
		return sysError(err)
	}
	if err := initLog(v.GetString(cfgKeyLogLevel), v.GetString(cfgKeyLogFormat)); err != nil {
		return err
	}

	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.WithFields(log.Fields{
		"config":  v.ConfigFileUsed(),
		"record":  cfg.RecordFile,
		"summary": cfg.SummaryFile,
	}).Debug("loaded configuration")
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the root command with args and returns the process exit
// code. Errors raised before any command starts (flags, arguments, unknown
// commands) are usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	log.SetOutput(stderr)

	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	if !a.started {
		return exitUserError
	}
	return exitCode(err)
}

// exitCodeError carries an explicit exit code.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// sysError marks err as a system failure (exit code 2).
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeError{code: exitSysError, err: err}
}

var errInvalidArgument = errors.New("invalid argument")

// dataErrors are the failures caused by the user's files or arguments.
var dataErrors = []error{
	types.ErrMalformedRecord,
	types.ErrEmptyRecord,
	types.ErrIdentityMismatch,
	types.ErrSummaryNotFound,
	types.ErrDuplicateID,
	types.ErrDuplicateColumn,
	types.ErrMissingID,
	types.ErrMissingIDColumn,
	types.ErrIdentitySetChanged,
	types.ErrTemplateNotFound,
	types.ErrRunNotFound,
	types.ErrRecordFileEmpty,
	types.ErrSummaryFileEmpty,
	types.ErrToleranceInvalid,
	errInvalidLogLevel,
	errInvalidLogFormat,
	errInvalidArgument,
}

// exitCode maps err to an exit code: explicit codes first, then known data
// errors, and anything else is a system error.
func exitCode(err error) int {
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	for _, target := range dataErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
