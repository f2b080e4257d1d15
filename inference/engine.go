// Package inference - Inference engine interface shared by the model runtimes.
package inference

import (
	"context"
	"fmt"
	"strings"
)

// DataType is the element type of a tensor.
type DataType int

const (
	// Unknown is any element type the detector does not handle.
	Unknown DataType = iota
	// Float32 tensors hold IEEE 754 single precision values.
	Float32
	// UInt8 tensors hold bytes, optionally quantised.
	UInt8
	// Int32 tensors hold 32 bit signed integers.
	Int32
	// Int64 tensors hold 64 bit signed integers.
	Int64
)

// String returns the lower case type name.
func (d DataType) String() string {
	switch d {
	case Float32:
		return "float32"
	case UInt8:
		return "uint8"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// TensorInfo describes an input or output tensor of a loaded model.
type TensorInfo struct {
	// Name is the tensor name in the model graph.
	Name string
	// Type is the element type.
	Type DataType
	// Shape holds the dimensions. Dynamic dimensions are reported as -1.
	Shape []int64
	// Scale is the quantisation scale, zero when the tensor is not quantised.
	Scale float32
	// ZeroPoint is the quantisation zero point.
	ZeroPoint int64
}

// Elements returns the number of elements, or -1 when a dimension is dynamic.
func (t TensorInfo) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

// String formats the tensor as "name type [d0 d1 ...]".
func (t TensorInfo) String() string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s %s [%s]", t.Name, t.Type, strings.Join(dims, " "))
}

// Engine runs a loaded model. Implementations are not safe for concurrent use.
type Engine interface {
	// Inputs describes the model inputs.
	Inputs() []TensorInfo
	// Outputs describes the model outputs.
	Outputs() []TensorInfo
	// SetInput copies data, a []uint8 or []float32, into input index with the given shape.
	SetInput(index int, shape []int64, data any) error
	// Invoke runs the model on the current inputs.
	Invoke(ctx context.Context) error
	// Output returns output index of the last invocation as float32, dequantising if needed.
	Output(index int) ([]float32, error)
	// Close releases the model and runtime resources.
	Close() error
}

// Options configures how an engine loads and runs a model.
type Options struct {
	// Threads is the number of threads the runtime may use.
	Threads int `json:"threads" yaml:"threads"`
	// Precision is the requested compute precision for accelerators that support it.
	Precision Precision `json:"precision" yaml:"precision"`
	// Delegates names the accelerators to attach, for example "xnnpack" or "cuda".
	Delegates []string `json:"delegates" yaml:"delegates"`
	// SharedLibrary overrides the path of the runtime shared library where one is needed.
	SharedLibrary string `json:"shared_library" yaml:"shared_library"`
	// Verbose enables runtime diagnostics.
	Verbose bool `json:"verbose" yaml:"verbose"`
}
