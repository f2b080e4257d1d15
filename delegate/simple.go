package delegate

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrDelegate marks failures raised by a delegate kernel.
var ErrDelegate = errors.New("delegate error")

// Params describes the partition handed to a delegate kernel.
type Params struct {
	// NodesToReplace are the node indices the kernel executes, in plan order.
	NodesToReplace []int
	// InputTensors are consumed by the partition but produced outside it.
	InputTensors []int
	// OutputTensors are produced by the partition.
	OutputTensors []int
}

// Kernel executes one delegated partition. The graph calls Init and Prepare once when the
// delegate is applied and Eval on every invocation.
type Kernel interface {
	Init(g *Graph, params Params) error
	Prepare(g *Graph) error
	Eval(g *Graph) error
}

// DelegateOptions limits how the graph is partitioned.
type DelegateOptions struct {
	// MaxDelegatedPartitions keeps only the largest partitions when positive.
	MaxDelegatedPartitions int
	// MinNodesPerPartition drops smaller partitions when positive.
	MinNodesPerPartition int
}

// SimpleDelegate decides which nodes it can run and creates kernels for them.
type SimpleDelegate interface {
	// Name identifies the delegate in logs and profiles.
	Name() string
	// IsNodeSupported reports whether the delegate can execute node.
	IsNodeSupported(g *Graph, index int, node Node) bool
	// Initialize is called once before partitioning.
	Initialize(g *Graph) error
	// CreateKernel returns a new kernel for one partition.
	CreateKernel() Kernel
	// Options returns the partitioning limits.
	Options() DelegateOptions
}

// ModifyWithDelegate hands every run of consecutive supported nodes to d. Nodes already owned
// by another delegate are not offered again.
//
// Arguments:
//   - d: The delegate to apply.
//
// Returns:
//   - error: An error if the delegate fails to initialise or a kernel fails Init or Prepare.
//     The graph is unchanged on error.
func (g *Graph) ModifyWithDelegate(d SimpleDelegate) error {
	if err := d.Initialize(g); err != nil {
		return errors.Wrapf(err, "failed to initialize %s", d.Name())
	}

	var runs [][]int
	var current []int
	for _, s := range g.plan {
		if s.kernel == nil && d.IsNodeSupported(g, s.nodes[0], g.nodes[s.nodes[0]]) {
			current = append(current, s.nodes[0])
			continue
		}
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}

	runs = limitPartitions(runs, d.Options())
	if len(runs) == 0 {
		return nil
	}

	kernels := make(map[int]Kernel, len(runs))
	for _, run := range runs {
		k := d.CreateKernel()
		if err := k.Init(g, g.partitionParams(run)); err != nil {
			return errors.Wrapf(err, "%s kernel init", d.Name())
		}
		if err := k.Prepare(g); err != nil {
			return errors.Wrapf(err, "%s kernel prepare", d.Name())
		}
		kernels[run[0]] = k
	}

	delegated := make(map[int]bool)
	for _, run := range runs {
		for _, n := range run {
			delegated[n] = true
		}
	}

	plan := make([]step, 0, len(g.plan))
	for _, s := range g.plan {
		if s.kernel == nil && delegated[s.nodes[0]] {
			k, first := kernels[s.nodes[0]]
			if !first {
				continue
			}
			plan = append(plan, step{nodes: partitionOf(runs, s.nodes[0]), kernel: k, name: d.Name()})
			continue
		}
		plan = append(plan, s)
	}
	g.plan = plan
	return nil
}

func partitionOf(runs [][]int, first int) []int {
	for _, run := range runs {
		if run[0] == first {
			return run
		}
	}
	return nil
}

// limitPartitions applies the minimum size and the maximum count, keeping the largest
// partitions and their original order.
func limitPartitions(runs [][]int, opts DelegateOptions) [][]int {
	kept := runs[:0:0]
	for _, run := range runs {
		if opts.MinNodesPerPartition > 0 && len(run) < opts.MinNodesPerPartition {
			continue
		}
		kept = append(kept, run)
	}

	if opts.MaxDelegatedPartitions > 0 && len(kept) > opts.MaxDelegatedPartitions {
		order := make([]int, len(kept))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool { return len(kept[order[i]]) > len(kept[order[j]]) })
		keep := make(map[int]bool, opts.MaxDelegatedPartitions)
		for _, i := range order[:opts.MaxDelegatedPartitions] {
			keep[i] = true
		}

		limited := make([][]int, 0, opts.MaxDelegatedPartitions)
		for i, run := range kept {
			if keep[i] {
				limited = append(limited, run)
			}
		}
		kept = limited
	}
	return kept
}

func (g *Graph) partitionParams(nodes []int) Params {
	produced := make(map[int]bool)
	params := Params{NodesToReplace: append([]int(nil), nodes...)}
	seen := make(map[int]bool)
	for _, n := range nodes {
		for _, t := range g.nodes[n].Inputs {
			if !produced[t] && !seen[t] {
				params.InputTensors = append(params.InputTensors, t)
				seen[t] = true
			}
		}
		for _, t := range g.nodes[n].Outputs {
			produced[t] = true
			params.OutputTensors = append(params.OutputTensors, t)
		}
	}
	return params
}
