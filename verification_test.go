package gogan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestVerifierSummary(t *testing.T) {
	v := &Verifier{}
	v.Record(1.0, 2.0)
	v.Record(3.0, 4.0)

	s := v.Summary()
	assert.Equal(t, 2, s.Epochs)
	assert.InDelta(t, 2.0, s.TrainMean, 1e-12)
	assert.InDelta(t, 3.0, s.TestMean, 1e-12)
}

func TestVerifierVerifyRecords(t *testing.T) {
	v := &Verifier{}
	v.Verify(0, 0.5, 0.7)
	v.Verify(1, 0.4, 0.6)
	assert.Len(t, v.TrainLosses, 2)
	assert.Len(t, v.TestLosses, 2)
}

func TestVerifierPlotLoss(t *testing.T) {
	v := &Verifier{}
	for i := 0; i < 10; i++ {
		v.Record(1.0/float64(i+1), 1.2/float64(i+1))
	}
	fname := filepath.Join(t.TempDir(), "losses.png")
	require.NoError(t, v.PlotLoss(fname))
	_, err := os.Stat(fname)
	assert.NoError(t, err)
}

func TestVerifierPlotLossEmpty(t *testing.T) {
	v := &Verifier{}
	assert.Error(t, v.PlotLoss(filepath.Join(t.TempDir(), "losses.png")))
}

func TestPlotXYValidation(t *testing.T) {
	x := tensor.Ones(tensor.Float64, 4)
	y := tensor.Ones(tensor.Float64, 5)
	assert.Error(t, PlotXY(x, y, "unused.png"))

	matrix := tensor.Ones(tensor.Float64, 2, 2)
	assert.Error(t, PlotXY(matrix, x, "unused.png"))
}

func TestPlotXYWritesFile(t *testing.T) {
	x := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{1, 2, 3}))
	y := tensor.New(tensor.WithShape(3), tensor.WithBacking([]float64{2, 4, 6}))
	fname := filepath.Join(t.TempDir(), "xy.png")
	require.NoError(t, PlotXY(x, y, fname))
	_, err := os.Stat(fname)
	assert.NoError(t, err)
}
