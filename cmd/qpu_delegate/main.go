// Command qpu_delegate runs a small element-wise graph with and without the QPU delegate and
// compares the results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/chewxy/math32"
	"github.com/nvr-ai/label-image/delegate"
	"github.com/nvr-ai/label-image/logger"
	"github.com/nvr-ai/label-image/profiler"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	parser := argparse.NewParser("qpu_delegate", "Compare a graph run with and without the QPU delegate")
	size := parser.Int("n", "size", &argparse.Options{Help: "elements per tensor", Default: 8})
	allowedOp := parser.Selector("a", "allowed_op", []string{"ADD", "SUB", "MUL"},
		&argparse.Options{Help: "builtin operator handed to the delegate", Default: "ADD"})
	useQPU := parser.Flag("q", "use_qpu", &argparse.Options{Help: "only run the delegated graph"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "log tensor values"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if err := logger.Init(*verbose); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(context.Background(), *size, *allowedOp, *useQPU); err != nil {
		logger.Log().Error("qpu_delegate failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, size int, allowedOp string, qpuOnly bool) error {
	op, err := delegate.ParseBuiltinOperator(allowedOp)
	if err != nil {
		return err
	}
	log := logger.Log()

	var reference []float32
	if !qpuOnly {
		g, out, err := demoGraph(size)
		if err != nil {
			return err
		}
		if err := g.Invoke(ctx, nil); err != nil {
			return errors.Wrap(err, "reference run failed")
		}
		reference = g.Data(out)
		log.Debug("reference output", zap.Float32s("values", reference))
	}

	g, out, err := demoGraph(size)
	if err != nil {
		return err
	}
	options := delegate.DefaultQPUOptions()
	options.AllowedBuiltinCode = op
	if err := g.ModifyWithDelegate(delegate.NewQPUDelegate(options)); err != nil {
		return err
	}
	log.Info("delegated graph",
		zap.Int("nodes", g.NumNodes()),
		zap.Any("partitions", g.Partitions()),
		zap.Stringer("allowed_op", op),
	)

	prof := profiler.New(profiler.DefaultMaxEntries)
	if err := g.Invoke(ctx, prof); err != nil {
		return errors.Wrap(err, "delegated run failed")
	}
	delegated := g.Data(out)
	log.Debug("delegated output", zap.Float32s("values", delegated))
	prof.Report(log)

	if reference == nil {
		return nil
	}
	if i, ok := firstMismatch(reference, delegated); !ok {
		return errors.Errorf("outputs differ at %d: %f != %f", i, reference[i], delegated[i])
	}
	log.Info("delegated output matches reference", zap.Int("elements", len(delegated)))
	return nil
}

// demoGraph builds ((a + b) - c) * d + a over size element tensors and returns the graph and
// its output tensor index.
func demoGraph(size int) (*delegate.Graph, int, error) {
	if size < 1 {
		return nil, 0, errors.Errorf("size must be positive, got %d", size)
	}
	g := delegate.NewGraph()
	shape := []int{size}

	inputs := make([]int, 4)
	for i := range inputs {
		data := make([]float32, size)
		for j := range data {
			data[j] = float32(i+1) * float32(j+1) / 2
		}
		idx, err := g.AddTensor(shape, data)
		if err != nil {
			return nil, 0, err
		}
		inputs[i] = idx
	}

	steps := []struct {
		op  delegate.BuiltinOperator
		rhs int
	}{
		{delegate.BuiltinAdd, inputs[1]},
		{delegate.BuiltinSub, inputs[2]},
		{delegate.BuiltinMul, inputs[3]},
		{delegate.BuiltinAdd, inputs[0]},
	}
	lhs := inputs[0]
	for _, s := range steps {
		out, err := g.AddTensor(shape, nil)
		if err != nil {
			return nil, 0, err
		}
		if _, err := g.AddNode(s.op, []int{lhs, s.rhs}, []int{out}); err != nil {
			return nil, 0, err
		}
		lhs = out
	}
	return g, lhs, nil
}

func firstMismatch(a, b []float32) (int, bool) {
	if len(a) != len(b) {
		return min(len(a), len(b)), false
	}
	for i := range a {
		if math32.Abs(a[i]-b[i]) > 1e-5*max(1, math32.Abs(a[i])) {
			return i, false
		}
	}
	return 0, true
}
