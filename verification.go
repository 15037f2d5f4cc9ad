package gogan

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
	"k8s.io/klog/v2"
)

// Verifier Collects per-epoch train/test losses for function approximation checks
type Verifier struct {
	TrainLosses []float64
	TestLosses  []float64
}

// VerificationSummary Aggregated view over recorded losses
type VerificationSummary struct {
	Epochs    int
	TrainMean float64
	TrainStd  float64
	TestMean  float64
	TestStd   float64
}

// Record Appends one train/test loss pair
func (v *Verifier) Record(trainLoss, testLoss float64) {
	v.TrainLosses = append(v.TrainLosses, trainLoss)
	v.TestLosses = append(v.TestLosses, testLoss)
}

// Verify Records one train/test loss pair and logs it
func (v *Verifier) Verify(epoch int, trainLoss, testLoss float64) {
	v.Record(trainLoss, testLoss)
	klog.V(1).Infof("epoch %d: train loss %.6f, test loss %.6f", epoch, trainLoss, testLoss)
}

// Summary Computes means and standard deviations over recorded losses
func (v *Verifier) Summary() VerificationSummary {
	s := VerificationSummary{Epochs: len(v.TrainLosses)}
	if len(v.TrainLosses) > 0 {
		s.TrainMean, s.TrainStd = stat.MeanStdDev(v.TrainLosses, nil)
	}
	if len(v.TestLosses) > 0 {
		s.TestMean, s.TestStd = stat.MeanStdDev(v.TestLosses, nil)
	}
	return s
}

// PlotLoss Plot chart for recorded train/test losses over epochs
func (v *Verifier) PlotLoss(fname string) error {
	if len(v.TrainLosses) == 0 {
		return fmt.Errorf("No losses have been recorded")
	}
	trainData := make(plotter.XYs, len(v.TrainLosses))
	testData := make(plotter.XYs, len(v.TestLosses))
	for i, l := range v.TrainLosses {
		trainData[i].X = float64(i)
		trainData[i].Y = l
	}
	for i, l := range v.TestLosses {
		testData[i].X = float64(i)
		testData[i].Y = l
	}
	trainLine, err := plotter.NewLine(trainData)
	if err != nil {
		return errors.Wrap(err, "Can't init line for train losses")
	}
	trainLine.Color = color.RGBA{R: 255, B: 128, A: 255}
	testLine, err := plotter.NewLine(testData)
	if err != nil {
		return errors.Wrap(err, "Can't init line for test losses")
	}
	testLine.Color = color.RGBA{B: 255, A: 255}
	p := plot.New()
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(trainLine)
	p.Add(testLine)
	p.Legend.Add("train", trainLine)
	p.Legend.Add("test", testLine)
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// PlotXY Plot chart for input y(x)
func PlotXY(x, y tensor.Tensor, fname string) error {
	if x.Dims() != 1 {
		return fmt.Errorf("X must have one dimension, but got %d", x.Dims())
	}
	if y.Dims() != 1 {
		return fmt.Errorf("Y(X) must have one dimension, but got %d", y.Dims())
	}
	if x.DataSize() != y.DataSize() {
		return fmt.Errorf("X and Y(X) must have same number of elements, but X has %d elements and Y(X) has %d elements", x.DataSize(), y.DataSize())
	}
	scatterData := make(plotter.XYs, x.DataSize())
	for i := 0; i < x.DataSize(); i++ {
		xval, err := x.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select X-value")
		}
		yval, err := y.At(i)
		if err != nil {
			return errors.Wrap(err, "Can't select Y(x)-value")
		}
		// Do no cast interfaces{} to any type when you are not sure about types
		scatterData[i].X = xval.(float64)
		scatterData[i].Y = yval.(float64)
	}
	scatter, err := plotter.NewScatter(scatterData)
	if err != nil {
		return errors.Wrap(err, "Can't init new scatter")
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	p := plot.New()
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())
	p.Add(scatter)
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
