package state

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/blas32/vector"
)

// Dict is a flat mapping from dotted parameter names to flattened
// tensor values, the unit of checkpoint exchange.
type Dict map[string]blas32.Vector

func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (d Dict) Clone() Dict {
	clone := make(Dict, len(d))
	for k, v := range d {
		clone[k] = vector.Clone(v)
	}
	return clone
}

// Set stores a copy of data under key.
func (d Dict) Set(key string, data []float32) {
	d[key] = vector.FromSlice(slices.Clone(data))
}

// StripPrefix returns the entries whose keys start with prefix, keyed
// by the remainder of the name.
func (d Dict) StripPrefix(prefix string) Dict {
	sub := Dict{}
	for k, v := range d {
		if strings.HasPrefix(k, prefix) {
			sub[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return sub
}

// Param is a named view onto a live parameter buffer. Loading writes
// through Data in place.
type Param struct {
	Name string
	Data []float32
}

// Assignment pairs load destinations with a source dictionary.
type Assignment struct {
	Dst []Param
	Src Dict
}

type copyOp struct {
	dst []float32
	src []float32
}

// Load copies source values onto destination parameters. With strict
// on, the key sets must match exactly; with strict off only the
// intersection is loaded. Size mismatches are errors in both modes.
// All assignments are checked before anything is written, so a failed
// load leaves every destination untouched.
func Load(strict bool, assignments ...Assignment) error {
	ops := make([]copyOp, 0)
	for _, a := range assignments {
		byName := make(map[string]Param, len(a.Dst))
		for _, p := range a.Dst {
			byName[p.Name] = p
		}

		var missing []string
		for _, p := range a.Dst {
			if _, ok := a.Src[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
		var unexpected []string
		for name := range a.Src {
			if _, ok := byName[name]; !ok {
				unexpected = append(unexpected, name)
			}
		}
		if strict && (len(missing) != 0 || len(unexpected) != 0) {
			slices.Sort(missing)
			slices.Sort(unexpected)
			return fmt.Errorf("state dict keys do not match: missing %v, unexpected %v", missing, unexpected)
		}

		for name, src := range a.Src {
			dst, ok := byName[name]
			if !ok {
				continue
			}
			if len(dst.Data) != src.N {
				return fmt.Errorf("size mismatch for %q: have %d, want %d", name, src.N, len(dst.Data))
			}
			ops = append(ops, copyOp{dst: dst.Data, src: src.Data})
		}
	}

	for _, op := range ops {
		copy(op.dst, op.src)
	}
	return nil
}
