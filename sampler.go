package gogan

import (
	"fmt"

	rng "github.com/leesper/go_rng"
	"gorgonia.org/tensor"
)

// NoiseSampler Source of latent space samples for a generative model.
// Every Sample() call must return a dense of shape (batch_size, latent_size).
type NoiseSampler interface {
	Sample() (*tensor.Dense, error)
}

// GaussianSampler Draws latent space samples from N(mean, stddev).
type GaussianSampler struct {
	batchSize  int
	latentSize int
	mean       float64
	stddev     float64
	gen        *rng.GaussianGenerator
}

// NewGaussianSampler Constructor for GaussianSampler with standard normal parameters
//
// batchSize - Simply batch size
// latentSize - Number of elements in each batch (latent space size)
// seed - Seed for underlying generator. Fix it to reproduce results
//
func NewGaussianSampler(batchSize, latentSize int, seed int64) (*GaussianSampler, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	if latentSize < 1 {
		return nil, fmt.Errorf("Latent space size must be positive, but got %d", latentSize)
	}
	return &GaussianSampler{
		batchSize:  batchSize,
		latentSize: latentSize,
		mean:       0.0,
		stddev:     1.0,
		gen:        rng.NewGaussianGenerator(seed),
	}, nil
}

// Sample Returns reference to tensor.Dense of shape (batch_size, latent_size) filled with normally distributed float64 values
func (s *GaussianSampler) Sample() (*tensor.Dense, error) {
	data := make([]float64, s.batchSize*s.latentSize)
	for i := range data {
		data[i] = s.gen.Gaussian(s.mean, s.stddev)
	}
	return tensor.New(tensor.WithShape(s.batchSize, s.latentSize), tensor.WithBacking(data)), nil
}

// UniformSampler Draws latent space samples from [0.0, 1.0).
type UniformSampler struct {
	batchSize  int
	latentSize int
	gen        *rng.UniformGenerator
}

// NewUniformSampler Constructor for UniformSampler
//
// batchSize - Simply batch size
// latentSize - Number of elements in each batch (latent space size)
// seed - Seed for underlying generator. Fix it to reproduce results
//
func NewUniformSampler(batchSize, latentSize int, seed int64) (*UniformSampler, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	if latentSize < 1 {
		return nil, fmt.Errorf("Latent space size must be positive, but got %d", latentSize)
	}
	return &UniformSampler{
		batchSize:  batchSize,
		latentSize: latentSize,
		gen:        rng.NewUniformGenerator(seed),
	}, nil
}

// Sample Returns reference to tensor.Dense of shape (batch_size, latent_size) filled with pseudo-random float64 values in range [0.0, 1.0)
func (s *UniformSampler) Sample() (*tensor.Dense, error) {
	data := make([]float64, s.batchSize*s.latentSize)
	for i := range data {
		data[i] = s.gen.Float64()
	}
	return tensor.New(tensor.WithShape(s.batchSize, s.latentSize), tensor.WithBacking(data)), nil
}
