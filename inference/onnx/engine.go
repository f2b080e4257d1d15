// Package onnx - inference.Engine backed by ONNX Runtime.
package onnx

import (
	"context"
	"sync"

	"github.com/nvr-ai/label-image/inference"
	"github.com/nvr-ai/label-image/inference/providers"
	"github.com/nvr-ai/label-image/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

func init() {
	inference.Register(inference.EngineONNX, func(path string, opts inference.Options) (inference.Engine, error) {
		return Open(path, opts)
	})
}

var envMu sync.Mutex

// initEnvironment loads the shared library and creates the process wide ORT environment once.
func initEnvironment(opts inference.Options) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	ort.SetSharedLibraryPath(providers.GetSharedLibPath(opts.SharedLibrary))
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize onnxruntime environment")
	}
	if opts.Verbose {
		if err := ort.SetEnvironmentLogLevel(ort.LoggingLevelVerbose); err != nil {
			logger.Log().Warn("failed to raise onnxruntime log level", zap.Error(err))
		}
	}
	return nil
}

// Engine runs a model with a dynamic ONNX Runtime session. Outputs are allocated by the
// runtime on every invocation.
type Engine struct {
	session *ort.DynamicAdvancedSession
	inputs  []inference.TensorInfo
	outputs []inference.TensorInfo

	inputValues  []ort.Value
	outputValues []ort.Value
}

// Open loads the model at path.
//
// Arguments:
//   - path: Path to the .onnx model.
//   - opts: Threads, precision and execution providers.
//
// Returns:
//   - *Engine: The loaded engine.
//   - error: An error if the runtime or model cannot be loaded.
func Open(path string, opts inference.Options) (*Engine, error) {
	if err := initEnvironment(opts); err != nil {
		return nil, err
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model io info from %s", path)
	}

	list, err := providers.Parse(opts.Delegates, opts.Precision)
	if err != nil {
		return nil, err
	}
	config := providers.DefaultSessionConfig(opts.Threads)
	config.Providers = list

	options, err := providers.NewSessionOptions(config)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	e := &Engine{
		inputs:       convertInfo(inInfo),
		outputs:      convertInfo(outInfo),
		inputValues:  make([]ort.Value, len(inInfo)),
		outputValues: make([]ort.Value, len(outInfo)),
	}

	session, err := ort.NewDynamicAdvancedSession(path, names(e.inputs), names(e.outputs), options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	e.session = session

	for _, p := range list {
		logger.Log().Info("applied execution provider", zap.String("provider", string(p.Backend())))
	}
	return e, nil
}

func convertInfo(infos []ort.InputOutputInfo) []inference.TensorInfo {
	out := make([]inference.TensorInfo, len(infos))
	for i, info := range infos {
		out[i] = inference.TensorInfo{
			Name:  info.Name,
			Type:  convertType(info.DataType),
			Shape: append([]int64(nil), info.Dimensions...),
		}
	}
	return out
}

func convertType(t ort.TensorElementDataType) inference.DataType {
	switch t {
	case ort.TensorElementDataTypeFloat:
		return inference.Float32
	case ort.TensorElementDataTypeUint8:
		return inference.UInt8
	case ort.TensorElementDataTypeInt32:
		return inference.Int32
	case ort.TensorElementDataTypeInt64:
		return inference.Int64
	default:
		return inference.Unknown
	}
}

func names(infos []inference.TensorInfo) []string {
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name
	}
	return out
}

// Inputs implements inference.Engine.
func (e *Engine) Inputs() []inference.TensorInfo { return e.inputs }

// Outputs implements inference.Engine.
func (e *Engine) Outputs() []inference.TensorInfo { return e.outputs }

// SetInput implements inference.Engine.
func (e *Engine) SetInput(index int, shape []int64, data any) error {
	if index < 0 || index >= len(e.inputValues) {
		return errors.Errorf("input %d out of range, model has %d inputs", index, len(e.inputValues))
	}

	var (
		value ort.Value
		err   error
	)
	switch d := data.(type) {
	case []float32:
		value, err = ort.NewTensor(ort.NewShape(shape...), d)
	case []uint8:
		value, err = ort.NewTensor(ort.NewShape(shape...), d)
	default:
		return errors.Errorf("unsupported input data %T", data)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to create input tensor %s", e.inputs[index].Name)
	}

	if old := e.inputValues[index]; old != nil {
		old.Destroy()
	}
	e.inputValues[index] = value
	return nil
}

// Invoke implements inference.Engine.
func (e *Engine) Invoke(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, v := range e.inputValues {
		if v == nil {
			return errors.Errorf("input %s not set", e.inputs[i].Name)
		}
	}

	e.releaseOutputs()
	if err := e.session.Run(e.inputValues, e.outputValues); err != nil {
		return errors.Wrap(err, "failed to run session")
	}
	return nil
}

// Output implements inference.Engine.
func (e *Engine) Output(index int) ([]float32, error) {
	if index < 0 || index >= len(e.outputValues) {
		return nil, errors.Errorf("output %d out of range, model has %d outputs", index, len(e.outputValues))
	}

	switch t := e.outputValues[index].(type) {
	case nil:
		return nil, errors.Errorf("output %s not computed", e.outputs[index].Name)
	case *ort.Tensor[float32]:
		return append([]float32(nil), t.GetData()...), nil
	case *ort.Tensor[uint8]:
		return widen(t.GetData()), nil
	case *ort.Tensor[int32]:
		return widen(t.GetData()), nil
	case *ort.Tensor[int64]:
		return widen(t.GetData()), nil
	default:
		return nil, errors.Errorf("unsupported output type %T for %s", t, e.outputs[index].Name)
	}
}

func widen[T uint8 | int32 | int64](data []T) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v)
	}
	return out
}

func (e *Engine) releaseOutputs() {
	for i, v := range e.outputValues {
		if v != nil {
			v.Destroy()
			e.outputValues[i] = nil
		}
	}
}

// Close implements inference.Engine. The ORT environment stays alive for other engines.
func (e *Engine) Close() error {
	e.releaseOutputs()
	for i, v := range e.inputValues {
		if v != nil {
			v.Destroy()
			e.inputValues[i] = nil
		}
	}
	if e.session != nil {
		err := e.session.Destroy()
		e.session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
	}
	return nil
}
