package distill_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	omwrand "github.com/sw965/omw/math/rand"
	"github.com/sw965/raven/blas32/tensor/2d"
	"github.com/sw965/raven/distill"
	"github.com/sw965/raven/mlp"
	"github.com/sw965/raven/normalizer"
	"github.com/sw965/raven/state"
)

func TestClassify(t *testing.T) {
	priorPolicy := []string{"actor.layers.0.weight", "critic.layers.0.weight", "actor_obs_normalizer.mean"}
	assert.Equal(t, distill.PriorPolicy, distill.Classify(priorPolicy))

	priorDistillation := []string{"student.layers.0.weight", "teacher.layers.0.weight", "std"}
	assert.Equal(t, distill.PriorDistillation, distill.Classify(priorDistillation))

	assert.Equal(t, distill.Unknown, distill.Classify([]string{"foo.bar", "baz"}))
	assert.Equal(t, distill.Unknown, distill.Classify(nil))

	// both markers present: the actor branch wins
	both := []string{"student.layers.0.weight", "actor.layers.0.weight"}
	assert.Equal(t, distill.PriorPolicy, distill.Classify(both))
}

// priorPolicyDict builds a synthetic actor-critic checkpoint whose
// actor side matches the test module's teacher shapes (5 inputs, 2
// actions, hidden [32 32]).
func priorPolicyDict(t *testing.T) state.Dict {
	t.Helper()
	rng := omwrand.NewMt19937()

	actor, err := mlp.New(5, 2, []int{32, 32}, mlp.ELU, rng)
	require.NoError(t, err)
	critic, err := mlp.New(5, 1, []int{32, 32}, mlp.ELU, rng)
	require.NoError(t, err)
	norm, err := normalizer.NewEmpirical(5)
	require.NoError(t, err)
	batch := tensor2d.NewZeros(8, 5)
	for i := range batch.Data {
		batch.Data[i] = 0.25 * float32(i%7)
	}
	require.NoError(t, norm.Update(batch))

	dict := state.Dict{}
	actor.StateDict("actor.", dict)
	critic.StateDict("critic.", dict)
	norm.StateDict("actor_obs_normalizer.", dict)
	return dict
}

func studentEntries(d state.Dict) state.Dict {
	return d.StripPrefix("student")
}

func TestLoadPriorPolicyCheckpoint(t *testing.T) {
	st := newTestModule(t)
	require.False(t, st.LoadedTeacher())
	studentBefore := studentEntries(st.StateDict())

	dict := priorPolicyDict(t)
	resumed, err := st.LoadStateDict(dict, true)
	require.NoError(t, err)

	assert.False(t, resumed, "a prior-policy checkpoint does not resume training")
	assert.True(t, st.LoadedTeacher())
	assert.False(t, st.Teacher().Training())
	assert.False(t, st.TeacherObsNormalizer().Training())

	got := st.StateDict()
	assert.Equal(t, dict["actor.layers.0.weight"], got["teacher.layers.0.weight"])
	assert.Equal(t, dict["actor.layers.2.bias"], got["teacher.layers.2.bias"])
	assert.Equal(t, dict["actor_obs_normalizer.mean"], got["teacher_obs_normalizer.mean"])
	assert.Equal(t, dict["actor_obs_normalizer.var"], got["teacher_obs_normalizer.var"])
	assert.Equal(t, dict["actor_obs_normalizer.count"], got["teacher_obs_normalizer.count"])

	assert.Equal(t, studentBefore, studentEntries(got), "student parameters keep their fresh initialization")
}

func TestLoadPriorPolicyCheckpointStrictMismatch(t *testing.T) {
	st := newTestModule(t)
	before := st.StateDict()

	dict := priorPolicyDict(t)
	delete(dict, "actor.layers.1.bias")
	_, err := st.LoadStateDict(dict, true)
	require.Error(t, err)
	assert.Equal(t, before, st.StateDict(), "a failed load must not mutate anything")
	assert.False(t, st.LoadedTeacher())
}

func TestLoadPriorPolicyCheckpointNonStrict(t *testing.T) {
	st := newTestModule(t)

	dict := priorPolicyDict(t)
	delete(dict, "actor.layers.1.bias")
	resumed, err := st.LoadStateDict(dict, false)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.True(t, st.LoadedTeacher())
	assert.Equal(t, dict["actor.layers.0.weight"], st.StateDict()["teacher.layers.0.weight"])
}

func TestLoadPriorDistillationCheckpoint(t *testing.T) {
	src := newTestModule(t)
	// give the source some non-initial state
	obs := testObs(t, 4, 2.0)
	require.NoError(t, src.UpdateNormalization(obs))
	dict := src.StateDict()

	dst := newTestModule(t)
	resumed, err := dst.LoadStateDict(dict, true)
	require.NoError(t, err)

	assert.True(t, resumed, "a prior-distillation checkpoint resumes training")
	assert.True(t, dst.LoadedTeacher())
	assert.False(t, dst.Teacher().Training())
	assert.Equal(t, dict, dst.StateDict())

	// both modules now act identically in inference
	a, err := src.ActInference(obs)
	require.NoError(t, err)
	b, err := dst.ActInference(obs)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestLoadUnknownCheckpoint(t *testing.T) {
	st := newTestModule(t)
	before := st.StateDict()

	dict := state.Dict{}
	dict.Set("foo.weight", []float32{1, 2, 3})
	_, err := st.LoadStateDict(dict, true)
	assert.ErrorContains(t, err, "neither student nor teacher")
	assert.False(t, st.LoadedTeacher())
	assert.Equal(t, before, st.StateDict())
}
