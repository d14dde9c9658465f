package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/internal/reconcile"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// syncFlags are the flags shared by collect and update.
type syncFlags struct {
	write            bool
	ignoreFloatError bool
	absError         float64
	relError         float64
	strictLists      bool
}

func (f *syncFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.write, "write", false, "write the changes (default: preview only)")
	fl.BoolVar(&f.ignoreFloatError, "ignore-float-error", false, "ignore numeric differences within the tolerances")
	fl.Float64Var(&f.absError, "abs-error", types.DefaultAbsError, "absolute tolerance for --ignore-float-error (default: config abs_error)")
	fl.Float64Var(&f.relError, "rel-error", types.DefaultRelError, "relative tolerance for --ignore-float-error (default: config rel_error)")
	fl.BoolVar(&f.strictLists, "strict-lists", false, "compare lists element by element under --ignore-float-error")
}

// options builds reconcile options. Tolerance flags override the
// configured tolerances only when given.
func (f *syncFlags) options(cmd *cobra.Command, cfg types.Config) (reconcile.Options, error) {
	tol := diff.Tolerance{Abs: cfg.AbsError, Rel: cfg.RelError, StrictLists: f.strictLists}
	if cmd.Flags().Changed("abs-error") {
		tol.Abs = f.absError
	}
	if cmd.Flags().Changed("rel-error") {
		tol.Rel = f.relError
	}
	if tol.Abs < 0 || tol.Rel < 0 {
		return reconcile.Options{}, fmt.Errorf("abs-error %g, rel-error %g: %w", tol.Abs, tol.Rel, types.ErrToleranceInvalid)
	}
	return reconcile.Options{
		Write:            f.write,
		IgnoreFloatError: f.ignoreFloatError,
		Tolerance:        tol,
	}, nil
}
