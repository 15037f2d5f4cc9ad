package gogan

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Trainable Contract a generative model adapter expects from an underlying network:
// forward inference, back-propagation of an upstream gradient, an optimization step
// and a switchable inferencing mode.
type Trainable interface {
	// Inference Feeds observed data forward and returns the network output
	Inference(observed *tensor.Dense) (*tensor.Dense, error)
	// Backward Propagates an upstream gradient of shape equal to the output shape
	// and returns delta - the gradient with respect to the input
	Backward(grad *tensor.Dense) (*tensor.Dense, error)
	// Optimize Applies one optimization step to the learnables with provided learning rate
	Optimize(learningRate float64, epoch int) error
	// SwitchInferencingMode Toggles regularization behaviour (dropout and alike)
	SwitchInferencingMode(inferencing bool)
}

// SolverFactory Builds a solver for provided batch size and learning rate.
type SolverFactory func(batchSize int, learningRate float64) gorgonia.Solver

// SolverRMSProp Default solver
func SolverRMSProp(batchSize int, learningRate float64) gorgonia.Solver {
	return gorgonia.NewRMSPropSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))
}

func SolverAdam(batchSize int, learningRate float64) gorgonia.Solver {
	return gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))
}

func SolverVanilla(batchSize int, learningRate float64) gorgonia.Solver {
	return gorgonia.NewVanillaSolver(gorgonia.WithBatchSize(float64(batchSize)), gorgonia.WithLearnRate(learningRate))
}

// Feedforward Trainable backed by a Network evaluated on a Gorgonia expression graph.
//
// The upstream gradient is injected through an exogenous node: the evaluation
// chain ends with cost = sum(out .* grad), so the gradient of cost with respect
// to any learnable equals the chain rule product of the injected gradient and
// the local jacobian. Gradient with respect to the input node plays the role of
// delta returned by Backward.
//
type Feedforward struct {
	graph     *gorgonia.ExprGraph
	net       *Network
	batchSize int
	inputSize int
	newSolver SolverFactory

	inferencing bool
	generation  int

	input      *gorgonia.Node
	pipe       *ffPipeline
	staleGrads gorgonia.Nodes
	lastInput  *tensor.Dense
	needReset  bool
	solver     gorgonia.Solver
	solverRate float64
}

type ffPipeline struct {
	inferencing bool
	grad        *gorgonia.Node
	out         *gorgonia.Node
	outVal      gorgonia.Value
	deltaVal    gorgonia.Value
	vm          gorgonia.VM
}

type FeedforwardOption func(*Feedforward)

// WithSolverFactory Overrides default RMSProp solver
func WithSolverFactory(f SolverFactory) FeedforwardOption {
	return func(ff *Feedforward) {
		if f != nil {
			ff.newSolver = f
		}
	}
}

// NewFeedforward Constructor for Feedforward
//
// g - Graph the network's layers have been defined on
// net - Layer stack
// batchSize - Simply batch size
// inputSize - Number of features in each batch
//
func NewFeedforward(g *gorgonia.ExprGraph, net *Network, batchSize, inputSize int, opts ...FeedforwardOption) (*Feedforward, error) {
	if g == nil {
		return nil, fmt.Errorf("Graph is nil")
	}
	if net == nil {
		return nil, fmt.Errorf("Network is nil")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	if inputSize < 1 {
		return nil, fmt.Errorf("Input size must be positive, but got %d", inputSize)
	}
	if len(net.Learnables()) == 0 {
		return nil, fmt.Errorf("Network must have one learnable node atleast")
	}
	ff := &Feedforward{
		graph:     g,
		net:       net,
		batchSize: batchSize,
		inputSize: inputSize,
		newSolver: SolverRMSProp,
	}
	for _, o := range opts {
		o(ff)
	}
	return ff, nil
}

// Network Returns underlying layer stack
func (ff *Feedforward) Network() *Network {
	return ff.net
}

// SwitchInferencingMode Toggles dropout behaviour. When the network carries dropout
// layers the evaluation chain is rebuilt lazily on the next Inference/Backward call.
func (ff *Feedforward) SwitchInferencingMode(inferencing bool) {
	ff.inferencing = inferencing
}

// compile Builds (or rebuilds after a dropout-relevant mode switch) the evaluation
// chain, gradient nodes and tape machine. The chain is appended to the user's graph,
// weights are shared between generations. Upstream-gradient nodes of superseded
// chains stay exogenous, so they get zero-bound to keep the whole-graph tape
// machine runnable.
func (ff *Feedforward) compile() error {
	if ff.pipe != nil {
		if ff.pipe.inferencing == ff.inferencing || !ff.net.hasDropout() {
			return nil
		}
	}
	if ff.input == nil {
		ff.input = gorgonia.NewMatrix(ff.graph, gorgonia.Float64, gorgonia.WithShape(ff.batchSize, ff.inputSize), gorgonia.WithName("ff_input"))
	}
	if ff.pipe != nil {
		ff.pipe.vm.Close()
		ff.staleGrads = append(ff.staleGrads, ff.pipe.grad)
		ff.pipe = nil
	}

	p := &ffPipeline{inferencing: ff.inferencing}
	out, err := ff.net.fwd(ff.input, ff.batchSize, ff.inferencing)
	if err != nil {
		return errors.Wrap(err, "Can't build feedforward chain")
	}
	p.out = out
	gorgonia.Read(p.out, &p.outVal)

	p.grad = gorgonia.NewTensor(ff.graph, gorgonia.Float64, p.out.Dims(), gorgonia.WithShape(p.out.Shape()...), gorgonia.WithName(fmt.Sprintf("ff_upstream_grad_%d", ff.generation)))
	prod, err := gorgonia.HadamardProd(p.out, p.grad)
	if err != nil {
		return errors.Wrap(err, "Can't multiply output and upstream gradient element-wise")
	}
	cost, err := gorgonia.Sum(prod)
	if err != nil {
		return errors.Wrap(err, "Can't sum injected gradient product")
	}
	gorgonia.WithName(fmt.Sprintf("ff_cost_%d", ff.generation))(cost)

	learnables := ff.net.Learnables()
	wrt := append(gorgonia.Nodes{}, learnables...)
	wrt = append(wrt, ff.input)
	gradNodes, err := gorgonia.Grad(cost, wrt...)
	if err != nil {
		return errors.Wrap(err, "Can't take gradients of cost w.r.t. learnables and input")
	}
	gorgonia.Read(gradNodes[len(gradNodes)-1], &p.deltaVal)

	for _, stale := range ff.staleGrads {
		if err := gorgonia.Let(stale, zeroDense(stale.Shape())); err != nil {
			return errors.Wrap(err, "Can't zero-bind superseded upstream gradient node")
		}
	}

	p.vm = gorgonia.NewTapeMachine(ff.graph, gorgonia.BindDualValues(learnables...))
	ff.pipe = p
	ff.needReset = false
	ff.generation++
	return nil
}

// Inference Feeds observed data forward and returns a copy of the output.
// Observed data with more than 2 dimensions is flattened to (batch_size, -1).
func (ff *Feedforward) Inference(observed *tensor.Dense) (*tensor.Dense, error) {
	if err := ff.compile(); err != nil {
		return nil, err
	}
	in, err := flatten2D(observed)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare observed data")
	}
	if in.Shape()[0] != ff.batchSize || in.Shape()[1] != ff.inputSize {
		return nil, fmt.Errorf("Observed data must have shape (%d, %d), but got %v", ff.batchSize, ff.inputSize, in.Shape())
	}
	p := ff.pipe
	if ff.needReset {
		p.vm.Reset()
		ff.needReset = false
	}
	if err := gorgonia.Let(ff.input, in); err != nil {
		return nil, errors.Wrap(err, "Can't bind observed data to input node")
	}
	if err := gorgonia.Let(p.grad, zeroDense(p.grad.Shape())); err != nil {
		return nil, errors.Wrap(err, "Can't zero-bind upstream gradient node")
	}
	if err := p.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run evaluation graph")
	}
	p.vm.Reset()
	ff.lastInput = in
	outT, ok := p.outVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Expected dense output, but got %T", p.outVal)
	}
	return outT.Clone().(*tensor.Dense), nil
}

// Backward Re-runs the chain for the last observed input with provided upstream
// gradient bound and returns delta - gradient of cost w.r.t. the input.
// Dual values of learnables stay populated for a following Optimize call.
func (ff *Feedforward) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if err := ff.compile(); err != nil {
		return nil, err
	}
	if ff.lastInput == nil {
		return nil, fmt.Errorf("Can't back-propagate before any forward pass")
	}
	g2, err := flatten2D(grad)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare upstream gradient")
	}
	p := ff.pipe
	if !g2.Shape().Eq(p.grad.Shape()) {
		return nil, fmt.Errorf("Upstream gradient must have shape %v, but got %v", p.grad.Shape(), g2.Shape())
	}
	if ff.needReset {
		p.vm.Reset()
	}
	if err := gorgonia.Let(ff.input, ff.lastInput); err != nil {
		return nil, errors.Wrap(err, "Can't bind observed data to input node")
	}
	if err := gorgonia.Let(p.grad, g2); err != nil {
		return nil, errors.Wrap(err, "Can't bind upstream gradient node")
	}
	if err := p.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run evaluation graph")
	}
	ff.needReset = true
	deltaT, ok := p.deltaVal.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Expected dense delta, but got %T", p.deltaVal)
	}
	return deltaT.Clone().(*tensor.Dense), nil
}

// Optimize Applies one solver step to the learnables. The solver is rebuilt when
// the learning rate changes since Gorgonia solvers fix their rate at construction.
func (ff *Feedforward) Optimize(learningRate float64, epoch int) error {
	if ff.pipe == nil {
		return fmt.Errorf("Can't optimize before any backward pass")
	}
	if ff.solver == nil || ff.solverRate != learningRate {
		ff.solver = ff.newSolver(ff.batchSize, learningRate)
		ff.solverRate = learningRate
	}
	if err := ff.solver.Step(gorgonia.NodesToValueGrads(ff.net.Learnables())); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't do optimization step at epoch %d", epoch))
	}
	if ff.needReset {
		ff.pipe.vm.Reset()
		ff.needReset = false
	}
	return nil
}

// flatten2D Reshapes a dense with more (or less) than 2 dimensions to (batch_size, -1)
func flatten2D(t *tensor.Dense) (*tensor.Dense, error) {
	if t == nil {
		return nil, fmt.Errorf("Tensor is nil")
	}
	if t.Dims() == 2 {
		return t, nil
	}
	if t.Dims() < 1 {
		return nil, fmt.Errorf("Tensor must have one dimension atleast")
	}
	rows := t.Shape()[0]
	cols := t.Shape().TotalSize() / rows
	flat, ok := t.Clone().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Can't clone tensor of type %T", t)
	}
	if err := flat.Reshape(rows, cols); err != nil {
		return nil, errors.Wrap(err, "Can't reshape tensor to 2D")
	}
	return flat, nil
}

func zeroDense(shp tensor.Shape) *tensor.Dense {
	return tensor.New(tensor.WithShape(shp...), tensor.Of(tensor.Float64))
}
