package gogan

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GenerativeModel Generator side of a GAN training loop: draw fake data from
// noise, run forward inference, accept an upstream gradient and do one
// optimization step, toggle inferencing mode.
type GenerativeModel interface {
	Draw() (*tensor.Dense, error)
	Inference(observed *tensor.Dense) (*tensor.Dense, error)
	Learn(grad *tensor.Dense) (*tensor.Dense, error)
	SwitchInferencingMode(inferencing bool)
}

// Default hyper parameters for Model
const (
	DefaultLearningRate   = 1e-5
	DefaultAttenuateRate  = 0.1
	DefaultAttenuateEpoch = 50
)

// ModelConfig Bag of parameters for NewModel.
//
// Network takes precedence: when it is nil the model builds a Feedforward from
// Graph + Layers + InputSize with default hyper parameters. The built network
// carries no loss function: the training driver computes the loss (see loss.go)
// and feeds its gradient to Learn.
//
type ModelConfig struct {
	BatchSize      int
	LearningRate   float64
	AttenuateRate  float64
	AttenuateEpoch int
	Sampler        NoiseSampler

	Network Trainable

	Graph     *gorgonia.ExprGraph
	Layers    []*Layer
	InputSize int
	Solver    SolverFactory
}

// Model Adapter making a trainable network act as the generator of a GAN.
//
// Holds the wrapped network, current learning rate (attenuated by
// attenuateRate every attenuateEpoch epochs), epoch counter and loss history.
// The network reference is read-only after construction.
//
type Model struct {
	net     Trainable
	sampler NoiseSampler

	batchSize      int
	learningRate   float64
	attenuateRate  float64
	attenuateEpoch int
	epoch          int
	lossHistory    []float64
}

// NewModel Constructor for Model
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", cfg.BatchSize)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.AttenuateRate == 0 {
		cfg.AttenuateRate = DefaultAttenuateRate
	}
	if cfg.AttenuateEpoch == 0 {
		cfg.AttenuateEpoch = DefaultAttenuateEpoch
	}
	if cfg.LearningRate < 0 {
		return nil, fmt.Errorf("Learning rate must be positive, but got %f", cfg.LearningRate)
	}
	if cfg.AttenuateRate < 0 {
		return nil, fmt.Errorf("Attenuation rate must be positive, but got %f", cfg.AttenuateRate)
	}
	if cfg.AttenuateEpoch < 0 {
		return nil, fmt.Errorf("Attenuation epoch must be positive, but got %d", cfg.AttenuateEpoch)
	}
	net := cfg.Network
	if net == nil {
		if cfg.Graph == nil || len(cfg.Layers) == 0 {
			return nil, fmt.Errorf("Either pre-built network or graph with layers must be provided")
		}
		opts := []FeedforwardOption{}
		if cfg.Solver != nil {
			opts = append(opts, WithSolverFactory(cfg.Solver))
		}
		ff, err := NewFeedforward(cfg.Graph, &Network{Name: "generator", Layers: cfg.Layers}, cfg.BatchSize, cfg.InputSize, opts...)
		if err != nil {
			return nil, errors.Wrap(err, "Can't build default feedforward network")
		}
		net = ff
	}
	return &Model{
		net:            net,
		sampler:        cfg.Sampler,
		batchSize:      cfg.BatchSize,
		learningRate:   cfg.LearningRate,
		attenuateRate:  cfg.AttenuateRate,
		attenuateEpoch: cfg.AttenuateEpoch,
	}, nil
}

// Network Returns reference to the wrapped network
func (m *Model) Network() Trainable {
	return m.net
}

// SetNetwork The wrapped network can't be reassigned after construction
func (m *Model) SetNetwork(net Trainable) error {
	return fmt.Errorf("Network reference is read-only after construction")
}

// Draw Draws samples from the `fake` distribution: noise goes through the network
func (m *Model) Draw() (*tensor.Dense, error) {
	if m.sampler == nil {
		return nil, fmt.Errorf("Noise sampler is not provided")
	}
	noise, err := m.sampler.Sample()
	if err != nil {
		return nil, errors.Wrap(err, "Can't sample noise")
	}
	return m.Inference(noise)
}

// Inference Feeds observed data points forward.
// Observed data with more than 2 dimensions is flattened to (batch_size, -1).
func (m *Model) Inference(observed *tensor.Dense) (*tensor.Dense, error) {
	in, err := flatten2D(observed)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare observed data")
	}
	out, err := m.net.Inference(in)
	if err != nil {
		return nil, errors.Wrap(err, "Can't run inference on wrapped network")
	}
	return out, nil
}

// Learn Updates the generator by provided upstream gradient and returns delta.
//
// Before the update the learning rate gets attenuated by the configured factor
// when the epoch about to finish crosses the attenuation boundary.
//
func (m *Model) Learn(grad *tensor.Dense) (*tensor.Dense, error) {
	if (m.epoch+1)%m.attenuateEpoch == 0 {
		m.learningRate *= m.attenuateRate
	}
	g2, err := flatten2D(grad)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare upstream gradient")
	}
	delta, err := m.net.Backward(g2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't back-propagate upstream gradient")
	}
	if err := m.net.Optimize(m.learningRate, m.epoch); err != nil {
		return nil, errors.Wrap(err, "Can't optimize wrapped network")
	}
	m.epoch++
	if loss, ok := meanAbs(g2); ok {
		m.lossHistory = append(m.lossHistory, loss)
	}
	return delta, nil
}

// meanAbs Mean absolute value over float64 or float32 backed denses
func meanAbs(t *tensor.Dense) (float64, bool) {
	switch data := t.Data().(type) {
	case []float64:
		if len(data) == 0 {
			return 0, false
		}
		abs := make([]float64, len(data))
		for i, v := range data {
			abs[i] = math.Abs(v)
		}
		return stat.Mean(abs, nil), true
	case []float32:
		if len(data) == 0 {
			return 0, false
		}
		abs := make([]float64, len(data))
		for i, v := range data {
			abs[i] = math.Abs(float64(v))
		}
		return stat.Mean(abs, nil), true
	default:
		return 0, false
	}
}

// SwitchInferencingMode Toggles inferencing mode in relation to concrete regularizations
func (m *Model) SwitchInferencingMode(inferencing bool) {
	m.net.SwitchInferencingMode(inferencing)
}

// LearningRate Returns current (possibly attenuated) learning rate
func (m *Model) LearningRate() float64 {
	return m.learningRate
}

// Epoch Returns number of finished Learn calls
func (m *Model) Epoch() int {
	return m.epoch
}

// LossHistory Returns per-epoch mean absolute upstream gradient recorded by Learn
func (m *Model) LossHistory() []float64 {
	return m.lossHistory
}
