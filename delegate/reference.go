package delegate

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// referenceKernel evaluates one builtin node with a gorgonia expression graph built once and
// rerun on every invocation.
type referenceKernel struct {
	node Node
	size int
	g    *G.ExprGraph
	a, b *G.Node
	out  *G.Node
	vm   G.VM
}

func newReferenceKernel(graph *Graph, node Node) (*referenceKernel, error) {
	size := graph.Tensor(node.Inputs[0]).Size()
	if graph.Tensor(node.Inputs[1]).Size() != size || graph.Tensor(node.Outputs[0]).Size() != size {
		return nil, errors.Errorf("%s operands differ in size", node.Op)
	}

	k := &referenceKernel{node: node, size: size, g: G.NewGraph()}
	k.a = G.NewVector(k.g, tensor.Float32, G.WithShape(size), G.WithName("a"))
	k.b = G.NewVector(k.g, tensor.Float32, G.WithShape(size), G.WithName("b"))

	var err error
	switch node.Op {
	case BuiltinAdd:
		k.out, err = G.Add(k.a, k.b)
	case BuiltinSub:
		k.out, err = G.Sub(k.a, k.b)
	case BuiltinMul:
		k.out, err = G.HadamardProd(k.a, k.b)
	default:
		err = errors.Errorf("no reference kernel for %s", node.Op)
	}
	if err != nil {
		return nil, err
	}

	k.vm = G.NewTapeMachine(k.g)
	return k, nil
}

func flat(graph *Graph, idx, size int) *tensor.Dense {
	return tensor.New(tensor.WithShape(size), tensor.WithBacking(graph.Data(idx)))
}

func (k *referenceKernel) eval(graph *Graph) error {
	defer k.vm.Reset()

	if err := G.Let(k.a, flat(graph, k.node.Inputs[0], k.size)); err != nil {
		return err
	}
	if err := G.Let(k.b, flat(graph, k.node.Inputs[1], k.size)); err != nil {
		return err
	}
	if err := k.vm.RunAll(); err != nil {
		return errors.Wrapf(err, "reference %s", k.node.Op)
	}

	result, ok := k.out.Value().Data().([]float32)
	if !ok {
		return errors.Errorf("reference %s produced %T", k.node.Op, k.out.Value().Data())
	}
	copy(graph.Data(k.node.Outputs[0]), result)
	return nil
}
