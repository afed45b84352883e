package distill

import (
	"fmt"
	"maps"
	"math/rand"
	"slices"

	"github.com/chewxy/math32"
	"github.com/sirupsen/logrus"
	omwrand "github.com/sw965/omw/math/rand"
	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/gaussian"
	"github.com/sw965/raven/mlp"
	"github.com/sw965/raven/normalizer"
	"github.com/sw965/raven/state"
)

// Approximator is the feed-forward function approximator contract the
// distillation module composes. mlp.Model satisfies it; callers may
// substitute their own implementation through Config.Build.
type Approximator interface {
	Forward(x blas32.General) (blas32.General, error)
	InputDim() int
	OutputDim() int
	Train(mode bool)
	Training() bool
	String() string
	StateDict(prefix string, dst state.Dict)
	Params(prefix string) []state.Param
	LoadStateDict(d state.Dict, strict bool) error
}

var _ Approximator = &mlp.Model{}

type BuildFunc func(inDim, outDim int, hiddenDims []int, activation mlp.Activation, rng *rand.Rand) (Approximator, error)

func defaultBuild(inDim, outDim int, hiddenDims []int, activation mlp.Activation, rng *rand.Rand) (Approximator, error) {
	return mlp.New(inDim, outDim, hiddenDims, activation, rng)
}

type NoiseKind int

const (
	// ScalarNoise holds the standard deviation directly. Nothing keeps
	// the values positive; the caller guarantees it by initialization.
	ScalarNoise NoiseKind = iota
	// LogNoise holds the log of the standard deviation, so the
	// resulting std is positive for any parameter value.
	LogNoise
)

func ParseNoiseKind(s string) (NoiseKind, error) {
	switch s {
	case "scalar":
		return ScalarNoise, nil
	case "log":
		return LogNoise, nil
	default:
		return 0, fmt.Errorf("unknown standard deviation type: %q, should be \"scalar\" or \"log\"", s)
	}
}

type Config struct {
	NumActions int
	ObsGroups  ObsGroups

	StudentObsNormalization bool
	TeacherObsNormalization bool

	StudentHiddenDims []int          // default [256 256 256]
	TeacherHiddenDims []int          // default [256 256 256]
	Activation        mlp.Activation // default elu
	InitNoiseStd      float32        // default 0.1
	NoiseStdKind      string         // "scalar" (default) or "log"

	Build BuildFunc  // default mlp builder
	Rng   *rand.Rand // default Mersenne Twister

	// Extra is tolerated for forward compatibility: unrecognized keys
	// are reported at construction and otherwise ignored.
	Extra map[string]any
}

// StudentTeacher trains a compact student policy to imitate a frozen
// teacher policy. The student output is wrapped in a diagonal-gaussian
// action distribution with a learnable observation-independent noise
// parameter; the teacher provides deterministic regression targets and
// only ever changes through a checkpoint load.
type StudentTeacher struct {
	groups        ObsGroups
	groupWidths   map[string]int
	numStudentObs int
	numTeacherObs int
	numActions    int

	student              Approximator
	teacher              Approximator
	studentObsNormalizer *normalizer.Slot
	teacherObsNormalizer *normalizer.Slot

	noiseKind NoiseKind
	noise     []float32 // std (scalar kind) or log-std (log kind), per action dimension

	dist          *gaussian.Diagonal
	rng           *rand.Rand
	training      bool
	loadedTeacher bool
}

// New builds the module. The probe set is only read for feature
// widths; its values are not retained.
func New(probe ObsSet, cfg Config) (*StudentTeacher, error) {
	if len(cfg.Extra) != 0 {
		keys := slices.Sorted(maps.Keys(cfg.Extra))
		logrus.Warnf("distill.New got unexpected config keys, which will be ignored: %v", keys)
	}

	if cfg.NumActions <= 0 {
		return nil, fmt.Errorf("action size must be positive: %d", cfg.NumActions)
	}
	if err := cfg.ObsGroups.validate(); err != nil {
		return nil, err
	}

	widths, err := cfg.ObsGroups.groupWidths(probe)
	if err != nil {
		return nil, err
	}
	numStudentObs := 0
	for _, name := range cfg.ObsGroups.Policy {
		numStudentObs += widths[name]
	}
	numTeacherObs := 0
	for _, name := range cfg.ObsGroups.Teacher {
		numTeacherObs += widths[name]
	}

	noiseKindName := cfg.NoiseStdKind
	if noiseKindName == "" {
		noiseKindName = "scalar"
	}
	noiseKind, err := ParseNoiseKind(noiseKindName)
	if err != nil {
		return nil, err
	}

	initNoiseStd := cfg.InitNoiseStd
	if initNoiseStd == 0 {
		initNoiseStd = 0.1
	}
	if noiseKind == LogNoise && initNoiseStd <= 0 {
		return nil, fmt.Errorf("initial noise std must be positive in log mode: %f", initNoiseStd)
	}

	activation := cfg.Activation
	if activation == "" {
		activation = mlp.ELU
	}
	studentHiddenDims := cfg.StudentHiddenDims
	if studentHiddenDims == nil {
		studentHiddenDims = []int{256, 256, 256}
	}
	teacherHiddenDims := cfg.TeacherHiddenDims
	if teacherHiddenDims == nil {
		teacherHiddenDims = []int{256, 256, 256}
	}
	build := cfg.Build
	if build == nil {
		build = defaultBuild
	}
	rng := cfg.Rng
	if rng == nil {
		rng = omwrand.NewMt19937()
	}

	student, err := build(numStudentObs, cfg.NumActions, studentHiddenDims, activation, rng)
	if err != nil {
		return nil, err
	}
	logrus.Infof("student: %v", student)

	teacher, err := build(numTeacherObs, cfg.NumActions, teacherHiddenDims, activation, rng)
	if err != nil {
		return nil, err
	}
	logrus.Infof("teacher: %v", teacher)

	studentSlot := normalizer.NewIdentity()
	if cfg.StudentObsNormalization {
		studentSlot, err = normalizer.NewEmpirical(numStudentObs)
		if err != nil {
			return nil, err
		}
	}
	teacherSlot := normalizer.NewIdentity()
	if cfg.TeacherObsNormalization {
		teacherSlot, err = normalizer.NewEmpirical(numTeacherObs)
		if err != nil {
			return nil, err
		}
	}

	noise := make([]float32, cfg.NumActions)
	for i := range noise {
		if noiseKind == LogNoise {
			noise[i] = math32.Log(initNoiseStd)
		} else {
			noise[i] = initNoiseStd
		}
	}

	st := &StudentTeacher{
		groups:               cfg.ObsGroups,
		groupWidths:          widths,
		numStudentObs:        numStudentObs,
		numTeacherObs:        numTeacherObs,
		numActions:           cfg.NumActions,
		student:              student,
		teacher:              teacher,
		studentObsNormalizer: studentSlot,
		teacherObsNormalizer: teacherSlot,
		noiseKind:            noiseKind,
		noise:                noise,
		rng:                  rng,
		training:             true,
	}
	st.teacher.Train(false)
	st.teacherObsNormalizer.Train(false)
	return st, nil
}

func (st *StudentTeacher) NumStudentObs() int {
	return st.numStudentObs
}

func (st *StudentTeacher) NumTeacherObs() int {
	return st.numTeacherObs
}

func (st *StudentTeacher) NumActions() int {
	return st.numActions
}

// Student returns the student approximator, the sub-tree the external
// training loop optimizes.
func (st *StudentTeacher) Student() Approximator {
	return st.student
}

// Teacher returns the frozen teacher approximator.
func (st *StudentTeacher) Teacher() Approximator {
	return st.teacher
}

func (st *StudentTeacher) StudentObsNormalizer() *normalizer.Slot {
	return st.studentObsNormalizer
}

func (st *StudentTeacher) TeacherObsNormalizer() *normalizer.Slot {
	return st.teacherObsNormalizer
}

// IsRecurrent reports whether the module carries temporal state across
// steps. It never does: there is no hidden state to reset or detach.
func (st *StudentTeacher) IsRecurrent() bool {
	return false
}

// LoadedTeacher reports whether a checkpoint load has populated the
// teacher parameters.
func (st *StudentTeacher) LoadedTeacher() bool {
	return st.loadedTeacher
}

// Train toggles training mode. The teacher sub-tree is forced back to
// evaluation mode afterwards, unconditionally.
func (st *StudentTeacher) Train(mode bool) {
	st.training = mode
	st.student.Train(mode)
	st.studentObsNormalizer.Train(mode)
	st.teacher.Train(mode)
	st.teacherObsNormalizer.Train(mode)

	st.teacher.Train(false)
	st.teacherObsNormalizer.Train(false)
}

func (st *StudentTeacher) Training() bool {
	return st.training
}

// stdRow returns the current per-dimension standard deviation.
func (st *StudentTeacher) stdRow() []float32 {
	std := make([]float32, len(st.noise))
	for i, e := range st.noise {
		if st.noiseKind == LogNoise {
			std[i] = math32.Exp(e)
		} else {
			std[i] = e
		}
	}
	return std
}

// updateDistribution refreshes the stored action distribution from the
// student output on already routed and normalized observations.
// Distribution validation stays off here: this is the hot sampling
// path, and malformed noise parameters propagate unchecked.
func (st *StudentTeacher) updateDistribution(x blas32.General) error {
	mean, err := st.student.Forward(x)
	if err != nil {
		return err
	}

	stdRow := st.stdRow()
	std := blas32.General{
		Rows:   mean.Rows,
		Cols:   mean.Cols,
		Stride: mean.Cols,
		Data:   make([]float32, mean.Rows*mean.Cols),
	}
	for r := 0; r < std.Rows; r++ {
		copy(std.Data[r*std.Stride:(r+1)*std.Stride], stdRow)
	}

	dist, err := gaussian.New(mean, std, false)
	if err != nil {
		return err
	}
	st.dist = dist
	return nil
}

// Act routes and normalizes the student observations, refreshes the
// action distribution and returns one stochastic action sample per
// batch row. The stored distribution is replaced as a side effect.
func (st *StudentTeacher) Act(obs ObsSet) (blas32.General, error) {
	x, err := st.studentObs(obs)
	if err != nil {
		return blas32.General{}, err
	}
	x, err = st.studentObsNormalizer.Normalize(x)
	if err != nil {
		return blas32.General{}, err
	}
	if err := st.updateDistribution(x); err != nil {
		return blas32.General{}, err
	}
	return st.dist.Sample(st.rng), nil
}

// ActInference returns the deterministic student mean without touching
// the stored distribution.
func (st *StudentTeacher) ActInference(obs ObsSet) (blas32.General, error) {
	x, err := st.studentObs(obs)
	if err != nil {
		return blas32.General{}, err
	}
	x, err = st.studentObsNormalizer.Normalize(x)
	if err != nil {
		return blas32.General{}, err
	}
	return st.student.Forward(x)
}

// Evaluate returns the deterministic teacher output, the regression
// target of the distillation loss. No gradient bookkeeping exists
// here; the forward pass alone guarantees the teacher is never updated
// through this call.
func (st *StudentTeacher) Evaluate(obs ObsSet) (blas32.General, error) {
	x, err := st.teacherObs(obs)
	if err != nil {
		return blas32.General{}, err
	}
	x, err = st.teacherObsNormalizer.Normalize(x)
	if err != nil {
		return blas32.General{}, err
	}
	return st.teacher.Forward(x)
}

// UpdateNormalization folds the routed student observations into the
// student normalizer statistics. No-op when student normalization is
// disabled. The training loop calls this explicitly once per step;
// Act never does it implicitly.
func (st *StudentTeacher) UpdateNormalization(obs ObsSet) error {
	if st.studentObsNormalizer.Kind() == normalizer.Identity {
		return nil
	}
	x, err := st.studentObs(obs)
	if err != nil {
		return err
	}
	return st.studentObsNormalizer.Update(x)
}

var errNoDistribution = fmt.Errorf("no action distribution: call Act first")

// ActionMean returns the mean of the stored action distribution.
func (st *StudentTeacher) ActionMean() (blas32.General, error) {
	if st.dist == nil {
		return blas32.General{}, errNoDistribution
	}
	return st.dist.Mean(), nil
}

// ActionStd returns the standard deviation of the stored action
// distribution.
func (st *StudentTeacher) ActionStd() (blas32.General, error) {
	if st.dist == nil {
		return blas32.General{}, errNoDistribution
	}
	return st.dist.Stddev(), nil
}

// Entropy returns the per-sample entropy of the stored action
// distribution, summed over action dimensions.
func (st *StudentTeacher) Entropy() (blas32.Vector, error) {
	if st.dist == nil {
		return blas32.Vector{}, errNoDistribution
	}
	return st.dist.Entropy(), nil
}

func (st *StudentTeacher) noiseKey() string {
	if st.noiseKind == LogNoise {
		return "log_std"
	}
	return "std"
}

// StateDict exports every parameter of the module under the key layout
// LoadStateDict expects from a prior distillation checkpoint.
func (st *StudentTeacher) StateDict() state.Dict {
	d := state.Dict{}
	st.student.StateDict("student.", d)
	st.studentObsNormalizer.StateDict("student_obs_normalizer.", d)
	st.teacher.StateDict("teacher.", d)
	st.teacherObsNormalizer.StateDict("teacher_obs_normalizer.", d)
	d.Set(st.noiseKey(), st.noise)
	return d
}

// Params returns live views onto every parameter of the module.
func (st *StudentTeacher) Params() []state.Param {
	params := st.student.Params("student.")
	params = append(params, st.studentObsNormalizer.Params("student_obs_normalizer.")...)
	params = append(params, st.teacher.Params("teacher.")...)
	params = append(params, st.teacherObsNormalizer.Params("teacher_obs_normalizer.")...)
	params = append(params, state.Param{Name: st.noiseKey(), Data: st.noise})
	return params
}
