package distill

import (
	"fmt"

	"github.com/sw965/omw/slicesx"
	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/blas32/tensor/2d"
)

// ObsSet maps observation-group names to batch tensors (rows are
// samples, columns are features).
type ObsSet map[string]blas32.General

// ObsGroups fixes which named observation groups feed each role and in
// which order. Order determines which feature range of the routed
// vector a group occupies, so it must not change once a network has
// been trained against it.
type ObsGroups struct {
	Policy  []string
	Teacher []string
}

func (g ObsGroups) validate() error {
	for role, names := range map[string][]string{"policy": g.Policy, "teacher": g.Teacher} {
		if len(names) == 0 {
			return fmt.Errorf("%s observation groups must not be empty", role)
		}
		if !slicesx.IsUnique(names) {
			return fmt.Errorf("%s observation groups contain duplicates: %v", role, names)
		}
	}
	return nil
}

// groupWidths reads the feature width of every referenced group from
// the probe set. Degenerate tensors are rejected: only non-empty
// batch-by-feature matrices are supported.
func (g ObsGroups) groupWidths(probe ObsSet) (map[string]int, error) {
	widths := map[string]int{}
	for _, names := range [][]string{g.Policy, g.Teacher} {
		for _, name := range names {
			gen, ok := probe[name]
			if !ok {
				return nil, fmt.Errorf("observation group %q is missing", name)
			}
			if gen.Rows <= 0 || gen.Cols <= 0 {
				return nil, fmt.Errorf("observation group %q must be a non-empty batch-by-feature matrix, got %dx%d", name, gen.Rows, gen.Cols)
			}
			widths[name] = gen.Cols
		}
	}
	return widths, nil
}

// routeObs concatenates the named groups in configured order into one
// flat feature matrix.
func (st *StudentTeacher) routeObs(names []string, obs ObsSet) (blas32.General, error) {
	gens := make([]blas32.General, len(names))
	for i, name := range names {
		gen, ok := obs[name]
		if !ok {
			return blas32.General{}, fmt.Errorf("observation group %q is missing", name)
		}
		if gen.Cols != st.groupWidths[name] {
			return blas32.General{}, fmt.Errorf("observation group %q width (%d) does not match the configured width (%d)", name, gen.Cols, st.groupWidths[name])
		}
		gens[i] = gen
	}
	return tensor2d.ConcatCols(gens...)
}

func (st *StudentTeacher) studentObs(obs ObsSet) (blas32.General, error) {
	return st.routeObs(st.groups.Policy, obs)
}

func (st *StudentTeacher) teacherObs(obs ObsSet) (blas32.General, error) {
	return st.routeObs(st.groups.Teacher, obs)
}
