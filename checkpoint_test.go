package gogan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()

	g := gorgonia.NewGraph()
	w := gorgonia.NewMatrix(g, gorgonia.Float64,
		gorgonia.WithShape(2, 2),
		gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))))
	b := gorgonia.NewMatrix(g, gorgonia.Float64,
		gorgonia.WithShape(1, 2),
		gorgonia.WithName("b"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{5, 6}))))
	net := &Network{Layers: []*Layer{{WeightNode: w, BiasNode: b, Type: LayerLinear}}}
	require.NoError(t, SaveNetwork(net, dir))

	g2 := gorgonia.NewGraph()
	w2 := glorotMatrix(g2, "w2", 2, 2)
	b2 := glorotMatrix(g2, "b2", 1, 2)
	restored := &Network{Layers: []*Layer{{WeightNode: w2, BiasNode: b2, Type: LayerLinear}}}
	require.NoError(t, LoadNetwork(restored, dir))

	assert.Equal(t, []float64{1, 2, 3, 4}, w2.Value().(*tensor.Dense).Data().([]float64))
	assert.Equal(t, []float64{5, 6}, b2.Value().(*tensor.Dense).Data().([]float64))
}

func TestLoadNetworkShapeMismatch(t *testing.T) {
	dir := t.TempDir()

	g := gorgonia.NewGraph()
	w := gorgonia.NewMatrix(g, gorgonia.Float64,
		gorgonia.WithShape(2, 2),
		gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))))
	net := &Network{Layers: []*Layer{{WeightNode: w, Type: LayerLinear}}}
	require.NoError(t, SaveNetwork(net, dir))

	g2 := gorgonia.NewGraph()
	restored := &Network{Layers: []*Layer{{WeightNode: glorotMatrix(g2, "w2", 3, 3), Type: LayerLinear}}}
	assert.Error(t, LoadNetwork(restored, dir))
}

func TestLoadNetworkMissingFile(t *testing.T) {
	g := gorgonia.NewGraph()
	net := &Network{Layers: []*Layer{{WeightNode: glorotMatrix(g, "w", 2, 2), Type: LayerLinear}}}
	assert.Error(t, LoadNetwork(net, t.TempDir()))
}

func TestSaveNetworkNil(t *testing.T) {
	assert.Error(t, SaveNetwork(nil, t.TempDir()))
	assert.Error(t, LoadNetwork(nil, t.TempDir()))
}
