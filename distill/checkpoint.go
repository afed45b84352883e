package distill

import (
	"fmt"
	"strings"

	"github.com/sw965/raven/state"
)

// Parameter-name markers of the two recognized checkpoint layouts.
// These substrings are a compatibility contract with persisted
// checkpoints and must not change.
const (
	priorPolicyMarker       = "actor"
	priorDistillationMarker = "student"

	actorParamPrefix         = "actor."
	actorObsNormalizerPrefix = "actor_obs_normalizer."
)

type Provenance int

const (
	Unknown Provenance = iota
	// PriorPolicy marks a checkpoint from single-policy actor-critic
	// training: only the actor side maps onto the teacher.
	PriorPolicy
	// PriorDistillation marks a checkpoint from an earlier run of this
	// module: the full parameter set restores directly.
	PriorDistillation
)

// Classify decides which training regime produced a checkpoint from
// its parameter names alone. First match wins: a dict carrying both
// markers classifies as PriorPolicy.
func Classify(keys []string) Provenance {
	for _, key := range keys {
		if strings.Contains(key, priorPolicyMarker) {
			return PriorPolicy
		}
	}
	for _, key := range keys {
		if strings.Contains(key, priorDistillationMarker) {
			return PriorDistillation
		}
	}
	return Unknown
}

// LoadStateDict restores parameters from a flat checkpoint dictionary.
//
// A prior-policy checkpoint populates only the teacher approximator
// and teacher normalizer, from the de-prefixed actor keys; the student
// keeps its fresh initialization and the returned resumed flag is
// false. A prior-distillation checkpoint restores the whole module and
// resumes. Anything else is an error. Either way the load is
// all-or-nothing: key and size matching is checked per the strict flag
// before any parameter is written, and the teacher sub-tree is forced
// back to evaluation mode after a successful load.
func (st *StudentTeacher) LoadStateDict(dict state.Dict, strict bool) (bool, error) {
	switch Classify(dict.Keys()) {
	case PriorPolicy:
		teacherDict := state.Dict{}
		teacherObsNormalizerDict := state.Dict{}
		for key, value := range dict {
			if strings.Contains(key, actorParamPrefix) {
				teacherDict[strings.ReplaceAll(key, actorParamPrefix, "")] = value
			}
			if strings.Contains(key, actorObsNormalizerPrefix) {
				teacherObsNormalizerDict[strings.ReplaceAll(key, actorObsNormalizerPrefix, "")] = value
			}
		}
		err := state.Load(strict,
			state.Assignment{Dst: st.teacher.Params(""), Src: teacherDict},
			state.Assignment{Dst: st.teacherObsNormalizer.Params(""), Src: teacherObsNormalizerDict},
		)
		if err != nil {
			return false, err
		}
		st.loadedTeacher = true
		st.teacher.Train(false)
		st.teacherObsNormalizer.Train(false)
		return false, nil

	case PriorDistillation:
		err := state.Load(strict, state.Assignment{Dst: st.Params(), Src: dict})
		if err != nil {
			return false, err
		}
		st.loadedTeacher = true
		st.teacher.Train(false)
		st.teacherObsNormalizer.Train(false)
		return true, nil

	default:
		return false, fmt.Errorf("state dict contains neither student nor teacher parameters")
	}
}
