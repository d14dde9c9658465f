package diff

import (
	"fmt"
	"math"

	"github.com/mesh-intelligence/notesync/internal/literal"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Tolerance configures IgnoreFloatError.
type Tolerance struct {
	Abs float64
	Rel float64
	// StrictLists requires every element of two lists to be a close numeric
	// pair. When false, non-numeric positions are not compared.
	StrictLists bool
}

// DefaultTolerance returns the default absolute and relative tolerances.
func DefaultTolerance() Tolerance {
	return Tolerance{Abs: types.DefaultAbsError, Rel: types.DefaultRelError}
}

// Close reports whether |a-b| <= Abs + Rel*|b|.
func (t Tolerance) Close(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	return math.Abs(a-b) <= t.Abs+t.Rel*math.Abs(b)
}

// IgnoreFloatError returns a copy of d without the cells whose two values
// are numerically close under tol, and without ids left with no changes.
//
// A cell is dropped when both values are numbers within tolerance, or when
// both are lists of equal length whose numeric pairs are all within
// tolerance. Values that do not parse as literals are kept.
//
// d must satisfy Diff.Verify; IgnoreFloatError panics otherwise, and panics
// if the two sides ever lose entries asymmetrically.
func IgnoreFloatError(d *Diff, tol Tolerance) *Diff {
	if err := d.Verify(); err != nil {
		panic(fmt.Sprintf("diff: IgnoreFloatError precondition: %v", err))
	}

	out := d.Clone()
	for id, ca := range d.ChangedA {
		cb := d.ChangedB[id]
		for col, va := range ca {
			if tol.equivalent(va, cb[col]) {
				delete(out.ChangedA[id], col)
				delete(out.ChangedB[id], col)
			}
		}

		na, nb := len(out.ChangedA[id]), len(out.ChangedB[id])
		if na == 0 || nb == 0 {
			if na != nb {
				panic(fmt.Sprintf("diff: id %q emptied on one side only (%d vs %d columns)", id, na, nb))
			}
			delete(out.ChangedA, id)
			delete(out.ChangedB, id)
		}
	}
	return out
}

// equivalent reports whether two differing cell values are equal within
// tolerance.
func (t Tolerance) equivalent(a, b string) bool {
	va, err := literal.Parse(a)
	if err != nil {
		return false
	}
	vb, err := literal.Parse(b)
	if err != nil {
		return false
	}

	if fa, ok := va.Float(); ok {
		fb, ok := vb.Float()
		return ok && t.Close(fa, fb)
	}

	if va.Kind() != literal.KindList || vb.Kind() != literal.KindList {
		return false
	}
	ia, ib := va.Items(), vb.Items()
	if len(ia) != len(ib) {
		return false
	}
	for i := range ia {
		fa, okA := ia[i].Float()
		fb, okB := ib[i].Float()
		if okA && okB {
			if !t.Close(fa, fb) {
				return false
			}
			continue
		}
		if t.StrictLists {
			return false
		}
	}
	return true
}
