// Package tflite - inference.Engine backed by the TensorFlow Lite C library.
package tflite

import (
	"context"
	"strings"

	tfl "github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/xnnpack"
	"github.com/nvr-ai/label-image/inference"
	"github.com/nvr-ai/label-image/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DelegateXNNPACK is the delegate name that attaches the XNNPACK CPU delegate.
const DelegateXNNPACK = "xnnpack"

func init() {
	inference.Register(inference.EngineTFLite, func(path string, opts inference.Options) (inference.Engine, error) {
		return Open(path, opts)
	})
}

// Engine runs a model with a TensorFlow Lite interpreter.
type Engine struct {
	model       *tfl.Model
	options     *tfl.InterpreterOptions
	interpreter *tfl.Interpreter
	delegates   []delegates.Delegater
}

// Open loads the model at path.
//
// Arguments:
//   - path: Path to the .tflite model.
//   - opts: Threads and delegates. Only "xnnpack" is a known delegate.
//
// Returns:
//   - *Engine: The engine with tensors allocated.
//   - error: An error if the model cannot be loaded or a delegate cannot be applied.
func Open(path string, opts inference.Options) (*Engine, error) {
	e := &Engine{}

	e.model = tfl.NewModelFromFile(path)
	if e.model == nil {
		return nil, errors.Errorf("failed to mmap model %s", path)
	}

	e.options = tfl.NewInterpreterOptions()
	if opts.Threads > 0 {
		e.options.SetNumThread(opts.Threads)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.Log().Error("tflite", zap.String("message", strings.TrimSpace(msg)))
	}, nil)

	for _, name := range opts.Delegates {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case DelegateXNNPACK:
			d := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(opts.Threads, 1))})
			if d == nil {
				e.Close()
				return nil, errors.New("failed to create xnnpack delegate")
			}
			e.options.AddDelegate(d)
			e.delegates = append(e.delegates, d)
			logger.Log().Info("applied delegate", zap.String("delegate", DelegateXNNPACK))
		default:
			e.Close()
			return nil, errors.Errorf("unsupported tflite delegate %q", name)
		}
	}

	e.interpreter = tfl.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, errors.New("failed to construct interpreter")
	}
	if status := e.interpreter.AllocateTensors(); status != tfl.OK {
		e.Close()
		return nil, errors.Errorf("failed to allocate tensors: %v", status)
	}
	return e, nil
}

func tensorInfo(t *tfl.Tensor) inference.TensorInfo {
	info := inference.TensorInfo{Name: t.Name(), Type: convertType(t.Type())}
	for i := 0; i < t.NumDims(); i++ {
		info.Shape = append(info.Shape, int64(t.Dim(i)))
	}
	q := t.QuantizationParams()
	info.Scale = float32(q.Scale)
	info.ZeroPoint = int64(q.ZeroPoint)
	return info
}

func convertType(t tfl.TensorType) inference.DataType {
	switch t {
	case tfl.Float32:
		return inference.Float32
	case tfl.UInt8:
		return inference.UInt8
	case tfl.Int32:
		return inference.Int32
	case tfl.Int64:
		return inference.Int64
	default:
		return inference.Unknown
	}
}

// Inputs implements inference.Engine.
func (e *Engine) Inputs() []inference.TensorInfo {
	n := e.interpreter.GetInputTensorCount()
	infos := make([]inference.TensorInfo, n)
	for i := 0; i < n; i++ {
		infos[i] = tensorInfo(e.interpreter.GetInputTensor(i))
	}
	return infos
}

// Outputs implements inference.Engine.
func (e *Engine) Outputs() []inference.TensorInfo {
	n := e.interpreter.GetOutputTensorCount()
	infos := make([]inference.TensorInfo, n)
	for i := 0; i < n; i++ {
		infos[i] = tensorInfo(e.interpreter.GetOutputTensor(i))
	}
	return infos
}

// SetInput implements inference.Engine. The input is resized and tensors reallocated when
// shape differs from the current input shape.
func (e *Engine) SetInput(index int, shape []int64, data any) error {
	if index < 0 || index >= e.interpreter.GetInputTensorCount() {
		return errors.Errorf("input %d out of range", index)
	}

	t := e.interpreter.GetInputTensor(index)
	if !sameShape(t, shape) {
		dims := make([]int32, len(shape))
		for i, d := range shape {
			dims[i] = int32(d)
		}
		if status := e.interpreter.ResizeInputTensor(index, dims); status != tfl.OK {
			return errors.Errorf("failed to resize input %s: %v", t.Name(), status)
		}
		if status := e.interpreter.AllocateTensors(); status != tfl.OK {
			return errors.Errorf("failed to allocate tensors: %v", status)
		}
		t = e.interpreter.GetInputTensor(index)
	}

	switch data.(type) {
	case []float32, []uint8:
	default:
		return errors.Errorf("unsupported input data %T", data)
	}
	if status := t.CopyFromBuffer(data); status != tfl.OK {
		return errors.Errorf("failed to copy input %s: %v", t.Name(), status)
	}
	return nil
}

func sameShape(t *tfl.Tensor, shape []int64) bool {
	if t.NumDims() != len(shape) {
		return false
	}
	for i, d := range shape {
		if int64(t.Dim(i)) != d {
			return false
		}
	}
	return true
}

// Invoke implements inference.Engine.
func (e *Engine) Invoke(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status := e.interpreter.Invoke(); status != tfl.OK {
		return errors.Errorf("failed to invoke interpreter: %v", status)
	}
	return nil
}

// Output implements inference.Engine. Quantised uint8 outputs are mapped back to real values
// with the tensor scale and zero point.
func (e *Engine) Output(index int) ([]float32, error) {
	if index < 0 || index >= e.interpreter.GetOutputTensorCount() {
		return nil, errors.Errorf("output %d out of range", index)
	}

	t := e.interpreter.GetOutputTensor(index)
	switch t.Type() {
	case tfl.Float32:
		return append([]float32(nil), t.Float32s()...), nil
	case tfl.UInt8:
		q := t.QuantizationParams()
		return Dequantize(t.UInt8s(), float32(q.Scale), int64(q.ZeroPoint)), nil
	default:
		return nil, errors.Errorf("unsupported output type %v for %s", t.Type(), t.Name())
	}
}

// Dequantize maps quantised bytes to real values. A zero scale means the tensor is not
// quantised and values are widened unchanged.
func Dequantize(data []uint8, scale float32, zeroPoint int64) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		if scale == 0 {
			out[i] = float32(v)
			continue
		}
		out[i] = float32(int64(v)-zeroPoint) * scale
	}
	return out
}

// Close implements inference.Engine.
func (e *Engine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	for _, d := range e.delegates {
		d.Delete()
	}
	e.delegates = nil
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
