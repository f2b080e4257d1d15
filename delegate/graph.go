// Package delegate - Host graph executor with pluggable delegate kernels.
//
// A Graph holds float32 tensors and element-wise operator nodes. Nodes run on reference
// kernels built on gorgonia expression graphs until a SimpleDelegate claims them through
// ModifyWithDelegate, after which each claimed partition runs on a single delegate Kernel
// following the Init, Prepare, Eval lifecycle.
package delegate

import (
	"context"
	"fmt"
	"strings"

	"github.com/nvr-ai/label-image/profiler"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// BuiltinOperator identifies the operation performed by a node.
type BuiltinOperator int

const (
	// BuiltinAdd is element-wise addition.
	BuiltinAdd BuiltinOperator = iota
	// BuiltinSub is element-wise subtraction.
	BuiltinSub
	// BuiltinMul is element-wise multiplication.
	BuiltinMul
)

var operatorNames = map[BuiltinOperator]string{
	BuiltinAdd: "ADD",
	BuiltinSub: "SUB",
	BuiltinMul: "MUL",
}

// String returns the upper case operator name.
func (op BuiltinOperator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("BUILTIN(%d)", int(op))
}

// ParseBuiltinOperator parses an operator name such as "add" or "SUB".
func ParseBuiltinOperator(s string) (BuiltinOperator, error) {
	for op, name := range operatorNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	return 0, errors.Errorf("unknown builtin operator %q", s)
}

// Node is a binary element-wise operation on graph tensors.
type Node struct {
	Op      BuiltinOperator
	Inputs  []int
	Outputs []int
}

// step is one entry of the execution plan: a single builtin node or a delegated partition.
type step struct {
	nodes  []int
	kernel Kernel
	name   string
}

// Graph is a list of tensors and the nodes that compute them, executed in insertion order.
type Graph struct {
	tensors  []*tensor.Dense
	nodes    []Node
	plan     []step
	builtins map[int]*referenceKernel
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{builtins: make(map[int]*referenceKernel)}
}

// AddTensor adds a float32 tensor and returns its index. A nil data slice allocates zeros.
func (g *Graph) AddTensor(shape []int, data []float32) (int, error) {
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, errors.Errorf("invalid tensor shape %v", shape)
		}
		size *= d
	}
	if data == nil {
		data = make([]float32, size)
	}
	if len(data) != size {
		return 0, errors.Errorf("tensor shape %v needs %d values, got %d", shape, size, len(data))
	}

	g.tensors = append(g.tensors, tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)))
	return len(g.tensors) - 1, nil
}

// AddNode appends a node with two inputs and one output and returns its index.
func (g *Graph) AddNode(op BuiltinOperator, inputs []int, outputs []int) (int, error) {
	if len(inputs) != 2 || len(outputs) != 1 {
		return 0, errors.Errorf("%s node needs 2 inputs and 1 output, got %d and %d", op, len(inputs), len(outputs))
	}
	for _, t := range append(append([]int(nil), inputs...), outputs...) {
		if t < 0 || t >= len(g.tensors) {
			return 0, errors.Errorf("tensor %d out of range", t)
		}
	}

	g.nodes = append(g.nodes, Node{
		Op:      op,
		Inputs:  append([]int(nil), inputs...),
		Outputs: append([]int(nil), outputs...),
	})
	idx := len(g.nodes) - 1
	g.plan = append(g.plan, step{nodes: []int{idx}, name: op.String()})
	return idx, nil
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Node returns node i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Tensor returns tensor i.
func (g *Graph) Tensor(i int) *tensor.Dense { return g.tensors[i] }

// Data returns the backing values of tensor i.
func (g *Graph) Data(i int) []float32 { return g.tensors[i].Data().([]float32) }

// SetData copies values into tensor i.
func (g *Graph) SetData(i int, values []float32) error {
	if i < 0 || i >= len(g.tensors) {
		return errors.Errorf("tensor %d out of range", i)
	}
	data := g.Data(i)
	if len(values) != len(data) {
		return errors.Errorf("tensor %d holds %d values, got %d", i, len(data), len(values))
	}
	copy(data, values)
	return nil
}

// Partitions returns the node indices handled by each delegate kernel, in plan order.
func (g *Graph) Partitions() [][]int {
	var parts [][]int
	for _, s := range g.plan {
		if s.kernel != nil {
			parts = append(parts, append([]int(nil), s.nodes...))
		}
	}
	return parts
}

// Invoke runs the execution plan. Each step is recorded in prof, which may be nil.
func (g *Graph) Invoke(ctx context.Context, prof *profiler.Profiler) error {
	for _, s := range g.plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		stop := prof.StartOperation(s.name, g.nodes[s.nodes[0]].Op.String(), s.nodes[0])
		var err error
		if s.kernel != nil {
			err = s.kernel.Eval(g)
		} else {
			err = g.evalBuiltin(s.nodes[0])
		}
		stop()

		if err != nil {
			return errors.Wrapf(err, "node %d (%s) failed", s.nodes[0], s.name)
		}
	}
	return nil
}

func (g *Graph) evalBuiltin(idx int) error {
	k, ok := g.builtins[idx]
	if !ok {
		var err error
		if k, err = newReferenceKernel(g, g.nodes[idx]); err != nil {
			return err
		}
		g.builtins[idx] = k
	}
	return k.eval(g)
}
