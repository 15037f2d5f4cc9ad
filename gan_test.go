package gogan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestNewGANLearnables(t *testing.T) {
	g := gorgonia.NewGraph()
	gen := Generator(&Layer{
		WeightNode: glorotMatrix(g, "gen_w0", 2, 2),
		BiasNode:   glorotMatrix(g, "gen_b0", 1, 2),
		Type:       LayerLinear,
		Activation: Rectify,
	})
	dis := Discriminator(&Layer{
		WeightNode: glorotMatrix(g, "dis_w0", 1, 2),
		BiasNode:   glorotMatrix(g, "dis_b0", 1, 1),
		Type:       LayerLinear,
		Activation: Sigmoid,
	})

	definedGAN, err := NewGAN(g, gen, dis)
	require.NoError(t, err)
	assert.Len(t, definedGAN.Learnables(), 4)
	assert.Len(t, definedGAN.GeneratorLearnables(), 2)
}

func TestGANFwdRequiresGeneratorFwd(t *testing.T) {
	g := gorgonia.NewGraph()
	gen := Generator(&Layer{WeightNode: glorotMatrix(g, "gen_w0", 2, 2), Type: LayerLinear})
	dis := Discriminator(&Layer{WeightNode: glorotMatrix(g, "dis_w0", 1, 2), Type: LayerLinear})

	definedGAN, err := NewGAN(g, gen, dis)
	require.NoError(t, err)
	assert.Error(t, definedGAN.Fwd(2))
}

func TestGANFwdShapes(t *testing.T) {
	g := gorgonia.NewGraph()
	gen := Generator(&Layer{
		WeightNode: glorotMatrix(g, "gen_w0", 2, 2),
		BiasNode:   glorotMatrix(g, "gen_b0", 1, 2),
		Type:       LayerLinear,
		Activation: Rectify,
	})
	dis := Discriminator(&Layer{
		WeightNode: glorotMatrix(g, "dis_w0", 1, 2),
		BiasNode:   glorotMatrix(g, "dis_b0", 1, 1),
		Type:       LayerLinear,
		Activation: Sigmoid,
	})

	definedGAN, err := NewGAN(g, gen, dis)
	require.NoError(t, err)

	input := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("gen_input"))
	require.NoError(t, gen.Fwd(input, 2))
	require.NoError(t, definedGAN.Fwd(2))

	assert.Equal(t, tensor.Shape{2, 1}, definedGAN.Out().Shape())
	assert.Equal(t, tensor.Shape{2, 2}, definedGAN.GeneratorOut().Shape())
}

func TestNewGANNilDiscriminatorLayer(t *testing.T) {
	g := gorgonia.NewGraph()
	gen := Generator(&Layer{WeightNode: glorotMatrix(g, "gen_w0", 2, 2), Type: LayerLinear})
	dis := Discriminator(nil)

	_, err := NewGAN(g, gen, dis)
	assert.Error(t, err)
}
