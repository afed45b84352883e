package normalizer

import (
	"fmt"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/blas32/tensor/2d"
	"github.com/sw965/raven/state"
)

type Kind int

const (
	Identity Kind = iota
	Empirical
)

const eps = 1e-5

// Slot is an observation-normalization unit. An Identity slot passes
// inputs through unchanged and carries no state; an Empirical slot
// standardizes inputs with running per-feature statistics. The kind is
// fixed at construction.
//
// Normalize never mutates the statistics; folding in new batches is
// the explicit Update operation, and Update only runs in training
// mode. Loaded statistics therefore stay frozen on a slot held in
// evaluation mode.
type Slot struct {
	kind     Kind
	dim      int
	training bool

	mean     []float32
	variance []float32
	count    []float32
}

func NewIdentity() *Slot {
	return &Slot{
		kind:     Identity,
		training: true,
	}
}

func NewEmpirical(dim int) (*Slot, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("feature size must be positive: %d", dim)
	}
	return &Slot{
		kind:     Empirical,
		dim:      dim,
		training: true,
		mean:     make([]float32, dim),
		variance: make([]float32, dim),
		count:    make([]float32, 1),
	}, nil
}

func (s *Slot) Kind() Kind {
	return s.kind
}

func (s *Slot) Train(mode bool) {
	s.training = mode
}

func (s *Slot) Training() bool {
	return s.training
}

func (s *Slot) Count() float32 {
	if s.kind == Identity {
		return 0.0
	}
	return s.count[0]
}

// Normalize standardizes x with the current statistics. The input is
// not modified.
func (s *Slot) Normalize(x blas32.General) (blas32.General, error) {
	if s.kind == Identity {
		return x, nil
	}
	if x.Cols != s.dim {
		return blas32.General{}, fmt.Errorf("input width (%d) does not match the normalizer size (%d)", x.Cols, s.dim)
	}

	z := tensor2d.NewZerosLike(x)
	for r := 0; r < x.Rows; r++ {
		xRow := x.Data[r*x.Stride : r*x.Stride+x.Cols]
		zRow := z.Data[r*z.Stride : r*z.Stride+z.Cols]
		for c, e := range xRow {
			zRow[c] = (e - s.mean[c]) / math32.Sqrt(s.variance[c]+eps)
		}
	}
	return z, nil
}

// Update folds a batch of raw observations into the running
// statistics (Chan et al. parallel combine). No-op on an Identity slot
// or in evaluation mode.
func (s *Slot) Update(x blas32.General) error {
	if s.kind == Identity || !s.training {
		return nil
	}
	if x.Cols != s.dim {
		return fmt.Errorf("input width (%d) does not match the normalizer size (%d)", x.Cols, s.dim)
	}
	if x.Rows == 0 {
		return fmt.Errorf("batch is empty")
	}

	batchMean := tensor2d.Mean0(x)
	batchVar := make([]float32, s.dim)
	for r := 0; r < x.Rows; r++ {
		row := x.Data[r*x.Stride : r*x.Stride+x.Cols]
		for c, e := range row {
			d := e - batchMean.Data[c]
			batchVar[c] += d * d
		}
	}
	for c := range batchVar {
		batchVar[c] /= float32(x.Rows)
	}

	s.count[0] += float32(x.Rows)
	rate := float32(x.Rows) / s.count[0]
	for c := range s.mean {
		delta := batchMean.Data[c] - s.mean[c]
		s.mean[c] += rate * delta
		s.variance[c] += rate * (batchVar[c] - s.variance[c] + delta*(batchMean.Data[c]-s.mean[c]))
	}
	return nil
}

// StateDict contributes nothing for an Identity slot, matching its
// lack of state.
func (s *Slot) StateDict(prefix string, dst state.Dict) {
	if s.kind == Identity {
		return
	}
	dst.Set(prefix+"mean", s.mean)
	dst.Set(prefix+"var", s.variance)
	dst.Set(prefix+"count", s.count)
}

func (s *Slot) Params(prefix string) []state.Param {
	if s.kind == Identity {
		return nil
	}
	return []state.Param{
		{Name: prefix + "mean", Data: s.mean},
		{Name: prefix + "var", Data: s.variance},
		{Name: prefix + "count", Data: s.count},
	}
}

func (s *Slot) LoadStateDict(d state.Dict, strict bool) error {
	return state.Load(strict, state.Assignment{Dst: s.Params(""), Src: d})
}
