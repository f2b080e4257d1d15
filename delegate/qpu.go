package delegate

import (
	"github.com/nvr-ai/label-image/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"
)

// QPUDelegateName is the name reported by QPUDelegate.
const QPUDelegateName = "QPUDelegate"

// QPUOptions configures the QPU delegate.
type QPUOptions struct {
	// AllowedBuiltinCode is the only operator the delegate claims.
	AllowedBuiltinCode BuiltinOperator
	// Partitions limits how the graph is split.
	Partitions DelegateOptions
}

// DefaultQPUOptions claims ADD nodes with no partition limits.
func DefaultQPUOptions() QPUOptions {
	return QPUOptions{AllowedBuiltinCode: BuiltinAdd}
}

// QPUDelegate runs element-wise nodes of a single operator type on gorgonia dense tensors.
type QPUDelegate struct {
	options QPUOptions
}

// NewQPUDelegate creates a delegate with the given options.
func NewQPUDelegate(options QPUOptions) *QPUDelegate {
	return &QPUDelegate{options: options}
}

// Name implements SimpleDelegate.
func (d *QPUDelegate) Name() string { return QPUDelegateName }

// IsNodeSupported implements SimpleDelegate.
func (d *QPUDelegate) IsNodeSupported(_ *Graph, _ int, node Node) bool {
	return node.Op == d.options.AllowedBuiltinCode
}

// Initialize implements SimpleDelegate.
func (d *QPUDelegate) Initialize(*Graph) error {
	logger.Log().Debug("initializing delegate",
		zap.String("delegate", QPUDelegateName),
		zap.Stringer("allowed_op", d.options.AllowedBuiltinCode),
	)
	return nil
}

// CreateKernel implements SimpleDelegate.
func (d *QPUDelegate) CreateKernel() Kernel { return &qpuKernel{} }

// Options implements SimpleDelegate.
func (d *QPUDelegate) Options() DelegateOptions { return d.options.Partitions }

// qpuKernel records each node's operands in Init and computes them in Eval.
type qpuKernel struct {
	inputs  [][2]int
	outputs []int
	ops     []BuiltinOperator
}

func (k *qpuKernel) Init(g *Graph, params Params) error {
	k.inputs = make([][2]int, len(params.NodesToReplace))
	k.outputs = make([]int, len(params.NodesToReplace))
	k.ops = make([]BuiltinOperator, len(params.NodesToReplace))

	for i, idx := range params.NodesToReplace {
		node := g.Node(idx)
		if len(node.Inputs) != 2 || len(node.Outputs) != 1 {
			return errors.Wrapf(ErrDelegate, "node %d has %d inputs and %d outputs", idx, len(node.Inputs), len(node.Outputs))
		}
		k.inputs[i] = [2]int{node.Inputs[0], node.Inputs[1]}
		k.outputs[i] = node.Outputs[0]
		k.ops[i] = node.Op
	}
	return nil
}

func (k *qpuKernel) Prepare(*Graph) error { return nil }

func (k *qpuKernel) Eval(g *Graph) error {
	for i := range k.ops {
		if err := computeResult(g, k.inputs[i][0], k.inputs[i][1], k.outputs[i], k.ops[i]); err != nil {
			return err
		}
	}
	return nil
}

func computeResult(g *Graph, in1, in2, out int, op BuiltinOperator) error {
	size := g.Tensor(in1).Size()
	if g.Tensor(in2).Size() != size || g.Tensor(out).Size() != size {
		return errors.Wrapf(ErrDelegate, "input and output sizes mismatch for %s: %d, %d, %d",
			op, size, g.Tensor(in2).Size(), g.Tensor(out).Size())
	}

	a, b := flat(g, in1, size), flat(g, in2, size)
	var (
		result tensor.Tensor
		err    error
	)
	switch op {
	case BuiltinAdd:
		result, err = tensor.Add(a, b)
	case BuiltinSub:
		result, err = tensor.Sub(a, b)
	case BuiltinMul:
		result, err = tensor.Mul(a, b)
	default:
		return errors.Wrapf(ErrDelegate, "unsupported operator %s", op)
	}
	if err != nil {
		return errors.Wrapf(ErrDelegate, "%s: %v", op, err)
	}

	copy(g.Data(out), result.Data().([]float32))
	return nil
}
