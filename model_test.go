package gogan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type stubCall struct {
	learningRate float64
	epoch        int
}

// stubNetwork records every delegated call so adapter semantics can be checked
// without spinning up an evaluation graph
type stubNetwork struct {
	inferred   []*tensor.Dense
	backwarded []*tensor.Dense
	optimized  []stubCall
	modes      []bool
	out        *tensor.Dense
	delta      *tensor.Dense
}

func (s *stubNetwork) Inference(observed *tensor.Dense) (*tensor.Dense, error) {
	s.inferred = append(s.inferred, observed)
	return s.out, nil
}

func (s *stubNetwork) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	s.backwarded = append(s.backwarded, grad)
	return s.delta, nil
}

func (s *stubNetwork) Optimize(learningRate float64, epoch int) error {
	s.optimized = append(s.optimized, stubCall{learningRate, epoch})
	return nil
}

func (s *stubNetwork) SwitchInferencingMode(inferencing bool) {
	s.modes = append(s.modes, inferencing)
}

func onesDense(shape ...int) *tensor.Dense {
	return tensor.Ones(tensor.Float64, shape...)
}

func TestNewModelDefaults(t *testing.T) {
	m, err := NewModel(ModelConfig{BatchSize: 4, Network: &stubNetwork{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultLearningRate, m.LearningRate())
	assert.Equal(t, 0, m.Epoch())
	assert.Empty(t, m.LossHistory())
}

func TestNewModelValidation(t *testing.T) {
	_, err := NewModel(ModelConfig{BatchSize: 0, Network: &stubNetwork{}})
	assert.Error(t, err)

	_, err = NewModel(ModelConfig{BatchSize: 4})
	assert.Error(t, err)
}

func TestLearnAttenuatesLearningRate(t *testing.T) {
	stub := &stubNetwork{delta: onesDense(2, 3)}
	m, err := NewModel(ModelConfig{
		BatchSize:      2,
		LearningRate:   1.0,
		AttenuateRate:  0.5,
		AttenuateEpoch: 2,
		Network:        stub,
	})
	require.NoError(t, err)

	grad := onesDense(2, 3)
	for i := 0; i < 4; i++ {
		_, err := m.Learn(grad)
		require.NoError(t, err)
	}

	// Attenuation fires when (epoch+1) % attenuateEpoch == 0, before the update
	require.Len(t, stub.optimized, 4)
	assert.InDelta(t, 1.0, stub.optimized[0].learningRate, 1e-12)
	assert.InDelta(t, 0.5, stub.optimized[1].learningRate, 1e-12)
	assert.InDelta(t, 0.5, stub.optimized[2].learningRate, 1e-12)
	assert.InDelta(t, 0.25, stub.optimized[3].learningRate, 1e-12)
	assert.InDelta(t, 0.25, m.LearningRate(), 1e-12)

	assert.Equal(t, []int{0, 1, 2, 3}, []int{stub.optimized[0].epoch, stub.optimized[1].epoch, stub.optimized[2].epoch, stub.optimized[3].epoch})
	assert.Equal(t, 4, m.Epoch())
}

func TestDrawDelegatesSampledNoise(t *testing.T) {
	sampler, err := NewGaussianSampler(4, 3, 42)
	require.NoError(t, err)
	stub := &stubNetwork{out: onesDense(4, 2)}
	m, err := NewModel(ModelConfig{BatchSize: 4, Network: stub, Sampler: sampler})
	require.NoError(t, err)

	out, err := m.Draw()
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 2}, out.Shape())
	require.Len(t, stub.inferred, 1)
	assert.Equal(t, tensor.Shape{4, 3}, stub.inferred[0].Shape())
}

func TestDrawWithoutSampler(t *testing.T) {
	m, err := NewModel(ModelConfig{BatchSize: 4, Network: &stubNetwork{}})
	require.NoError(t, err)
	_, err = m.Draw()
	assert.Error(t, err)
}

func TestInferenceFlattensObserved(t *testing.T) {
	stub := &stubNetwork{out: onesDense(2, 12)}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	_, err = m.Inference(onesDense(2, 3, 4))
	require.NoError(t, err)
	require.Len(t, stub.inferred, 1)
	assert.Equal(t, tensor.Shape{2, 12}, stub.inferred[0].Shape())
}

func TestLearnFlattensGradient(t *testing.T) {
	stub := &stubNetwork{delta: onesDense(2, 12)}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	_, err = m.Learn(onesDense(2, 3, 4))
	require.NoError(t, err)
	require.Len(t, stub.backwarded, 1)
	assert.Equal(t, tensor.Shape{2, 12}, stub.backwarded[0].Shape())
}

func TestLearnRecordsLossHistory(t *testing.T) {
	stub := &stubNetwork{delta: onesDense(2, 3)}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.Learn(onesDense(2, 3))
		require.NoError(t, err)
	}
	history := m.LossHistory()
	require.Len(t, history, 3)
	// Mean absolute value of an all-ones gradient is 1
	for _, l := range history {
		assert.InDelta(t, 1.0, l, 1e-12)
	}
}

func TestLearnRecordsLossHistoryFloat32(t *testing.T) {
	stub := &stubNetwork{delta: onesDense(2, 3)}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	grad := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{1, -1, 1, -1, 1, -1}))
	_, err = m.Learn(grad)
	require.NoError(t, err)

	history := m.LossHistory()
	require.Len(t, history, 1)
	assert.InDelta(t, 1.0, history[0], 1e-6)
}

func TestNetworkIsReadOnly(t *testing.T) {
	stub := &stubNetwork{}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	assert.Error(t, m.SetNetwork(&stubNetwork{}))
	assert.Same(t, stub, m.Network())
}

func TestSwitchInferencingModeDelegates(t *testing.T) {
	stub := &stubNetwork{}
	m, err := NewModel(ModelConfig{BatchSize: 2, Network: stub})
	require.NoError(t, err)

	m.SwitchInferencingMode(true)
	m.SwitchInferencingMode(false)
	assert.Equal(t, []bool{true, false}, stub.modes)
}
