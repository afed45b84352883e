package mlp

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/blas32/tensor/2d"
	"github.com/sw965/raven/blas32/vector"
	"github.com/sw965/raven/state"
)

type Activation string

const (
	ELU       Activation = "elu"
	ReLU      Activation = "relu"
	LeakyReLU Activation = "leaky_relu"
	Tanh      Activation = "tanh"
	Sigmoid   Activation = "sigmoid"
)

func (a Activation) fn() (func(float32) float32, error) {
	switch a {
	case ELU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return math32.Exp(x) - 1.0
		}, nil
	case ReLU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return 0.0
		}, nil
	case LeakyReLU:
		return func(x float32) float32 {
			if x > 0 {
				return x
			}
			return 0.01 * x
		}, nil
	case Tanh:
		return math32.Tanh, nil
	case Sigmoid:
		return func(x float32) float32 {
			return 1.0 / (1.0 + math32.Exp(-x))
		}, nil
	default:
		return nil, fmt.Errorf("unsupported activation: %q", a)
	}
}

type Layer struct {
	Weight blas32.General
	Bias   blas32.Vector
}

// Model is a fully connected feed-forward network. The activation is
// applied after every layer except the last.
type Model struct {
	layers   []Layer
	hidden   []int
	act      func(float32) float32
	actName  Activation
	inDim    int
	outDim   int
	training bool
}

func New(inDim, outDim int, hiddenDims []int, activation Activation, rng *rand.Rand) (*Model, error) {
	if inDim <= 0 || outDim <= 0 {
		return nil, fmt.Errorf("input and output sizes must be positive: %d, %d", inDim, outDim)
	}
	for _, h := range hiddenDims {
		if h <= 0 {
			return nil, fmt.Errorf("hidden sizes must be positive: %v", hiddenDims)
		}
	}

	act, err := activation.fn()
	if err != nil {
		return nil, err
	}

	sizes := make([]int, 0, len(hiddenDims)+2)
	sizes = append(sizes, inDim)
	sizes = append(sizes, hiddenDims...)
	sizes = append(sizes, outDim)

	layers := make([]Layer, len(sizes)-1)
	for i := range layers {
		layers[i] = Layer{
			Weight: tensor2d.NewHe(sizes[i], sizes[i+1], rng),
			Bias:   vector.NewZeros(sizes[i+1]),
		}
	}

	return &Model{
		layers:   layers,
		hidden:   hiddenDims,
		act:      act,
		actName:  activation,
		inDim:    inDim,
		outDim:   outDim,
		training: true,
	}, nil
}

func (m *Model) InputDim() int {
	return m.inDim
}

func (m *Model) OutputDim() int {
	return m.outDim
}

func (m *Model) Train(mode bool) {
	m.training = mode
}

func (m *Model) Training() bool {
	return m.training
}

func (m *Model) String() string {
	return fmt.Sprintf("MLP(in=%d, hidden=%v, out=%d, activation=%s)", m.inDim, m.hidden, m.outDim, m.actName)
}

// Forward runs one batch (rows are samples) through the network.
func (m *Model) Forward(x blas32.General) (blas32.General, error) {
	if x.Cols != m.inDim {
		return blas32.General{}, fmt.Errorf("input width (%d) does not match the network input size (%d)", x.Cols, m.inDim)
	}

	h := x
	for i, layer := range m.layers {
		y := tensor2d.Dot(blas.NoTrans, blas.NoTrans, h, layer.Weight)
		for r := 0; r < y.Rows; r++ {
			offset := r * y.Stride
			for c := 0; c < y.Cols; c++ {
				y.Data[offset+c] += layer.Bias.Data[c]
			}
		}
		if i < len(m.layers)-1 {
			for j, e := range y.Data {
				y.Data[j] = m.act(e)
			}
		}
		h = y
	}
	return h, nil
}

func (m *Model) StateDict(prefix string, dst state.Dict) {
	for i, layer := range m.layers {
		dst.Set(fmt.Sprintf("%slayers.%d.weight", prefix, i), layer.Weight.Data)
		dst.Set(fmt.Sprintf("%slayers.%d.bias", prefix, i), layer.Bias.Data)
	}
}

func (m *Model) Params(prefix string) []state.Param {
	params := make([]state.Param, 0, 2*len(m.layers))
	for i, layer := range m.layers {
		params = append(params,
			state.Param{Name: fmt.Sprintf("%slayers.%d.weight", prefix, i), Data: layer.Weight.Data},
			state.Param{Name: fmt.Sprintf("%slayers.%d.bias", prefix, i), Data: layer.Bias.Data},
		)
	}
	return params
}

func (m *Model) LoadStateDict(d state.Dict, strict bool) error {
	return state.Load(strict, state.Assignment{Dst: m.Params(""), Src: d})
}
