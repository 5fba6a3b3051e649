package nn

import (
	"errors"
	"fmt"
	"math/rand"
)

// BiasInput is appended to every input vector before the first layer.
const BiasInput = 1.0

var (
	ErrInvalidShape = errors.New("invalid network shape")
	ErrInputWidth   = errors.New("input width mismatch")
)

// Shape fixes the topology of a Network. Inputs is the sensory width; the
// network sees Inputs+1 values because of the bias channel.
type Shape struct {
	Inputs           int    `yaml:"inputs" json:"inputs"`
	Outputs          int    `yaml:"outputs" json:"outputs"`
	HiddenWidth      int    `yaml:"hidden_width" json:"hidden_width"`
	HiddenLayers     int    `yaml:"hidden_layers" json:"hidden_layers"`
	HiddenActivation string `yaml:"hidden_activation" json:"hidden_activation"`
	OutputActivation string `yaml:"output_activation" json:"output_activation"`
}

// Validate reports whether the shape can build a network. Empty activation
// names fall back to tanh.
func (s Shape) Validate() error {
	if s.Inputs <= 0 {
		return fmt.Errorf("%w: inputs must be > 0", ErrInvalidShape)
	}
	if s.Outputs <= 0 {
		return fmt.Errorf("%w: outputs must be > 0", ErrInvalidShape)
	}
	if s.HiddenLayers < 0 {
		return fmt.Errorf("%w: hidden layers must be >= 0", ErrInvalidShape)
	}
	if s.HiddenLayers > 0 && s.HiddenWidth <= 0 {
		return fmt.Errorf("%w: hidden width must be > 0", ErrInvalidShape)
	}
	for _, name := range []string{s.hiddenActivation(), s.outputActivation()} {
		if _, err := GetActivation(name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidShape, err)
		}
	}
	return nil
}

// Widths lists layer widths from the biased input layer to the output layer.
func (s Shape) Widths() []int {
	widths := make([]int, 0, s.HiddenLayers+2)
	widths = append(widths, s.Inputs+1)
	for i := 0; i < s.HiddenLayers; i++ {
		widths = append(widths, s.HiddenWidth)
	}
	return append(widths, s.Outputs)
}

func (s Shape) hiddenActivation() string {
	if s.HiddenActivation == "" {
		return "tanh"
	}
	return s.HiddenActivation
}

func (s Shape) outputActivation() string {
	if s.OutputActivation == "" {
		return "tanh"
	}
	return s.OutputActivation
}

type layer struct {
	in, out    int
	weights    []float32 // row-major, out rows of in columns
	biases     []float32
	activation ActivationFunc
}

// Network is a fixed-topology feed-forward network. Parameters are float32;
// Predict narrows inputs and widens activations at the boundary.
type Network struct {
	shape  Shape
	layers []layer
}

// New builds a zeroed network of the given shape and perturbs every parameter
// once with uniform noise in [-strength, strength].
func New(rng *rand.Rand, shape Shape, strength float64) (*Network, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	hidden, _ := GetActivation(shape.hiddenActivation())
	output, _ := GetActivation(shape.outputActivation())

	widths := shape.Widths()
	n := &Network{shape: shape, layers: make([]layer, 0, len(widths)-1)}
	for i := 1; i < len(widths); i++ {
		act := hidden
		if i == len(widths)-1 {
			act = output
		}
		n.layers = append(n.layers, layer{
			in:         widths[i-1],
			out:        widths[i],
			weights:    make([]float32, widths[i-1]*widths[i]),
			biases:     make([]float32, widths[i]),
			activation: act,
		})
	}
	n.Mutate(rng, strength)
	return n, nil
}

func (n *Network) Shape() Shape {
	return n.shape
}

// ParameterCount is the number of weights and biases.
func (n *Network) ParameterCount() int {
	total := 0
	for _, l := range n.layers {
		total += len(l.weights) + len(l.biases)
	}
	return total
}

// Predict returns the activation of every layer: the biased input first and
// the output layer last.
func (n *Network) Predict(inputs []float64) ([][]float64, error) {
	if len(inputs) != n.shape.Inputs {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrInputWidth, len(inputs), n.shape.Inputs)
	}

	current := narrow(inputs)
	current = append(current, BiasInput)

	activations := make([][]float64, 0, len(n.layers)+1)
	activations = append(activations, widen(current))
	for _, l := range n.layers {
		next := make([]float32, l.out)
		for o := 0; o < l.out; o++ {
			sum := l.biases[o]
			row := l.weights[o*l.in : (o+1)*l.in]
			for i, w := range row {
				sum += w * current[i]
			}
			next[o] = l.activation(sum)
		}
		activations = append(activations, widen(next))
		current = next
	}
	return activations, nil
}

// Output is the last layer of Predict.
func (n *Network) Output(inputs []float64) ([]float64, error) {
	activations, err := n.Predict(inputs)
	if err != nil {
		return nil, err
	}
	return activations[len(activations)-1], nil
}

// Mutate adds independent uniform noise in [-strength, strength] to every
// weight and bias. The shape is never touched.
func (n *Network) Mutate(rng *rand.Rand, strength float64) {
	if strength == 0 {
		return
	}
	for li := range n.layers {
		l := &n.layers[li]
		for i := range l.weights {
			l.weights[i] += float32((rng.Float64()*2 - 1) * strength)
		}
		for i := range l.biases {
			l.biases[i] += float32((rng.Float64()*2 - 1) * strength)
		}
	}
}

// Clone returns a deep copy with an independent parameter set.
func (n *Network) Clone() *Network {
	out := &Network{shape: n.shape, layers: make([]layer, len(n.layers))}
	for i, l := range n.layers {
		out.layers[i] = layer{
			in:         l.in,
			out:        l.out,
			weights:    append([]float32(nil), l.weights...),
			biases:     append([]float32(nil), l.biases...),
			activation: l.activation,
		}
	}
	return out
}

// Parameters flattens weights and biases layer by layer, for inspection and
// equality checks.
func (n *Network) Parameters() []float64 {
	out := make([]float64, 0, n.ParameterCount())
	for _, l := range n.layers {
		out = append(out, widen(l.weights)...)
		out = append(out, widen(l.biases)...)
	}
	return out
}
