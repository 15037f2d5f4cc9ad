package main

import (
	"fmt"
	"math"
	"math/rand"

	gan "github.com/ganstack/gogan"
	"github.com/schollz/progressbar/v3"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func generateX() float64 {
	return 2 * math.Pi * rand.Float64()
}

func generateY(x float64) float64 {
	return math.Sin(x)
}

var (
	outputFolder    = "./output"
	batchSize       = 16
	latentSpaceSize = 2
	numEpoches      = 400
	numTestSamples  = 300
	evalPrint       = 20
	discriminatorLR = 0.001
)

func main() {
	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	// Prepare synthetic data
	trainDataLength := 1024
	trainSet, err := gan.GenerateTrainingSet(trainDataLength, generateX, generateY)
	if err != nil {
		panic(err)
	}

	// Extract X and Y(X) values for charts plotting
	slicedXAxis, err := trainSet.TrainData.Slice(nil, gorgonia.S(0))
	if err != nil {
		panic(err)
	}
	slicedYAxis, err := trainSet.TrainData.Slice(nil, gorgonia.S(1))
	if err != nil {
		panic(err)
	}
	err = gan.PlotXY(slicedXAxis.Materialize(), slicedYAxis.Materialize(), fmt.Sprintf("%s/reference_function.png", outputFolder))
	if err != nil {
		panic(err)
	}

	// Noise source for the generator
	sampler, err := gan.NewGaussianSampler(batchSize, latentSpaceSize, 1337)
	if err != nil {
		panic(err)
	}

	// Generator as a generative model adapter over its own evaluation graph
	generatorGraph := gorgonia.NewGraph()
	generator, err := gan.NewModel(gan.ModelConfig{
		BatchSize:      batchSize,
		LearningRate:   0.001,
		AttenuateRate:  0.95,
		AttenuateEpoch: 1000,
		Sampler:        sampler,
		Graph:          generatorGraph,
		Layers:         defineGeneratorLayers(generatorGraph),
		InputSize:      latentSpaceSize,
	})
	if err != nil {
		panic(err)
	}

	// Discriminator sees real and fake batches stacked together
	discriminatorGraph := gorgonia.NewGraph()
	discriminatorNet := &gan.Network{Name: "discriminator", Layers: defineDiscriminatorLayers(discriminatorGraph)}
	discriminator, err := gan.NewFeedforward(discriminatorGraph, discriminatorNet, 2*batchSize, 2)
	if err != nil {
		panic(err)
	}

	verifier := &gan.Verifier{}
	batches := int(trainDataLength / batchSize)
	bar := progressbar.Default(int64(numEpoches))

	for epoch := 0; epoch < numEpoches; epoch++ {
		lastDiscriminatorLoss := 0.0
		lastGeneratorLoss := 0.0
		for b := 0; b < batches; b++ {
			start := b * batchSize
			end := start + batchSize
			if start >= trainDataLength {
				break
			}
			if end > trainDataLength {
				end = trainDataLength
			}

			/* Batch real data */
			xVal, err := trainSet.TrainData.Slice(gan.SlicerOneStep{StartIdx: start, EndIdx: end})
			if err != nil {
				panic(err)
			}
			realSamples := xVal.Materialize().(*tensor.Dense)
			err = realSamples.Reshape(batchSize, 2)
			if err != nil {
				panic(err)
			}

			/* Train discriminator on stacked real and fake samples */
			fakeSamples, err := generator.Draw()
			if err != nil {
				panic(err)
			}
			allSamples, err := realSamples.Concat(0, fakeSamples)
			if err != nil {
				panic(err)
			}
			labels := make([]float64, 2*batchSize)
			for i := 0; i < batchSize; i++ {
				labels[i] = 1.0
			}
			predictions, err := discriminator.Inference(allSamples)
			if err != nil {
				panic(err)
			}
			discriminatorGrad, discriminatorLoss := mseGradient(predictions, labels)
			_, err = discriminator.Backward(discriminatorGrad)
			if err != nil {
				panic(err)
			}
			err = discriminator.Optimize(discriminatorLR, epoch)
			if err != nil {
				panic(err)
			}
			lastDiscriminatorLoss = discriminatorLoss

			/* Train generator: its samples should be judged as real ones */
			fakeSamples, err = generator.Draw()
			if err != nil {
				panic(err)
			}
			stackedFake, err := fakeSamples.Concat(0, fakeSamples)
			if err != nil {
				panic(err)
			}
			predictions, err = discriminator.Inference(stackedFake)
			if err != nil {
				panic(err)
			}
			realLabels := make([]float64, 2*batchSize)
			for i := range realLabels {
				realLabels[i] = 1.0
			}
			generatorUpstream, generatorLoss := mseGradient(predictions, realLabels)
			// Delta of the discriminator w.r.t. its input is exactly the upstream
			// gradient for the generator's output. The discriminator is NOT
			// optimized on this pass.
			delta, err := discriminator.Backward(generatorUpstream)
			if err != nil {
				panic(err)
			}
			slicedDelta, err := delta.Slice(gan.SlicerOneStep{StartIdx: 0, EndIdx: batchSize})
			if err != nil {
				panic(err)
			}
			_, err = generator.Learn(slicedDelta.Materialize().(*tensor.Dense))
			if err != nil {
				panic(err)
			}
			lastGeneratorLoss = generatorLoss
		}
		bar.Add(1)

		if epoch%evalPrint == 0 {
			verifier.Verify(epoch, lastDiscriminatorLoss, lastGeneratorLoss)
			err = plotGenerated(generator, fmt.Sprintf("%s/gen_reference_func_%d.png", outputFolder, epoch))
			if err != nil {
				panic(err)
			}
		}
	}

	// Final test of generator
	fmt.Println("Start testing generator after final epoch")
	err = plotGenerated(generator, fmt.Sprintf("%s/gen_reference_func_final.png", outputFolder))
	if err != nil {
		panic(err)
	}
	err = verifier.PlotLoss(fmt.Sprintf("%s/losses.png", outputFolder))
	if err != nil {
		panic(err)
	}
	summary := verifier.Summary()
	fmt.Printf("Recorded %d evaluation points. Discriminator loss %.6f±%.6f, generator loss %.6f±%.6f\n",
		summary.Epochs, summary.TrainMean, summary.TrainStd, summary.TestMean, summary.TestStd)
}

// mseGradient Returns element-wise gradient of mean squared error between
// predictions and labels along with the loss value itself
func mseGradient(predictions *tensor.Dense, labels []float64) (*tensor.Dense, float64) {
	data := predictions.Data().([]float64)
	grad := make([]float64, len(data))
	loss := 0.0
	for i := range data {
		diff := data[i] - labels[i]
		grad[i] = 2.0 * diff / float64(len(data))
		loss += diff * diff
	}
	loss /= float64(len(data))
	return tensor.New(tensor.WithShape(predictions.Shape()...), tensor.WithBacking(grad)), loss
}

func plotGenerated(generator *gan.Model, fname string) error {
	var testSamplesTensor *tensor.Dense
	for i := 0; i < numTestSamples/batchSize; i++ {
		fakeSamples, err := generator.Draw()
		if err != nil {
			return err
		}
		if testSamplesTensor == nil {
			testSamplesTensor = fakeSamples
			continue
		}
		testSamplesTensor, err = testSamplesTensor.Vstack(fakeSamples)
		if err != nil {
			return err
		}
	}
	slicedXAxis, err := testSamplesTensor.Slice(nil, gorgonia.S(0))
	if err != nil {
		return err
	}
	slicedYAxis, err := testSamplesTensor.Slice(nil, gorgonia.S(1))
	if err != nil {
		return err
	}
	return gan.PlotXY(slicedXAxis.Materialize(), slicedYAxis.Materialize(), fname)
}

func defineDiscriminatorLayers(g *gorgonia.ExprGraph) []*gan.Layer {
	shp0 := tensor.Shape{64, 2}
	b0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp0[0]), gorgonia.WithName("discriminator_b0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp0...), gorgonia.WithName("discriminator_w0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	shp1 := tensor.Shape{32, 64}
	b1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp1[0]), gorgonia.WithName("discriminator_b1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp1...), gorgonia.WithName("discriminator_w1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	shp2 := tensor.Shape{1, 32}
	b2 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp2[0]), gorgonia.WithName("discriminator_b2"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w2 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp2...), gorgonia.WithName("discriminator_w2"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	return []*gan.Layer{
		{
			WeightNode: w0,
			BiasNode:   b0,
			Type:       gan.LayerLinear,
			Activation: gan.Rectify,
		},
		{
			WeightNode: w1,
			BiasNode:   b1,
			Type:       gan.LayerLinear,
			Activation: gan.Rectify,
		},
		{
			WeightNode: w2,
			BiasNode:   b2,
			Type:       gan.LayerLinear,
			Activation: gan.Sigmoid,
		},
	}
}

func defineGeneratorLayers(g *gorgonia.ExprGraph) []*gan.Layer {
	shp0 := tensor.Shape{16, latentSpaceSize}
	b0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp0[0]), gorgonia.WithName("generator_b0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w0 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp0...), gorgonia.WithName("generator_w0"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	shp1 := tensor.Shape{32, 16}
	b1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp1[0]), gorgonia.WithName("generator_b1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w1 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp1...), gorgonia.WithName("generator_w1"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	shp2 := tensor.Shape{2, 32}
	b2 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, shp2[0]), gorgonia.WithName("generator_b2"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	w2 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(shp2...), gorgonia.WithName("generator_w2"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	return []*gan.Layer{
		{
			WeightNode: w0,
			BiasNode:   b0,
			Type:       gan.LayerLinear,
			Activation: gan.Rectify,
		},
		{
			WeightNode: w1,
			BiasNode:   b1,
			Type:       gan.LayerLinear,
			Activation: gan.Rectify,
		},
		{
			WeightNode: w2,
			BiasNode:   b2,
			Type:       gan.LayerLinear,
			Activation: gan.NoActivation,
		},
	}
}
