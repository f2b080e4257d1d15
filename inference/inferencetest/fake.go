// Package inferencetest - In-memory engine for tests of code built on inference.Engine.
package inferencetest

import (
	"context"
	"sync"

	"github.com/nvr-ai/label-image/inference"
	"github.com/pkg/errors"
)

// Engine is a fake inference.Engine that returns fixed outputs.
type Engine struct {
	mu sync.Mutex

	InputInfo  []inference.TensorInfo
	OutputInfo []inference.TensorInfo
	// Results holds the data returned by Output, one entry per output tensor.
	Results [][]float32
	// InvokeErr is returned by Invoke when set.
	InvokeErr error

	// Invocations counts calls to Invoke.
	Invocations int
	// LastShape and LastInput record the most recent SetInput call.
	LastShape []int64
	LastInput any
	Closed    bool
}

// NewSSD returns a fake SSD detector with a single NHWC input of the given size and type and
// the four standard outputs.
func NewSSD(height, width int64, input inference.DataType, locations, classes, scores []float32, num float32) *Engine {
	n := int64(len(scores))
	return &Engine{
		InputInfo: []inference.TensorInfo{
			{Name: "normalized_input_image_tensor", Type: input, Shape: []int64{1, height, width, 3}},
		},
		OutputInfo: []inference.TensorInfo{
			{Name: "TFLite_Detection_PostProcess", Type: inference.Float32, Shape: []int64{1, n, 4}},
			{Name: "TFLite_Detection_PostProcess:1", Type: inference.Float32, Shape: []int64{1, n}},
			{Name: "TFLite_Detection_PostProcess:2", Type: inference.Float32, Shape: []int64{1, n}},
			{Name: "TFLite_Detection_PostProcess:3", Type: inference.Float32, Shape: []int64{1}},
		},
		Results: [][]float32{locations, classes, scores, {num}},
	}
}

// Inputs implements inference.Engine.
func (e *Engine) Inputs() []inference.TensorInfo { return e.InputInfo }

// Outputs implements inference.Engine.
func (e *Engine) Outputs() []inference.TensorInfo { return e.OutputInfo }

// SetInput implements inference.Engine.
func (e *Engine) SetInput(index int, shape []int64, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.InputInfo) {
		return errors.Errorf("input %d out of range", index)
	}
	switch data.(type) {
	case []uint8, []float32:
	default:
		return errors.Errorf("unsupported input data %T", data)
	}
	e.LastShape = append([]int64(nil), shape...)
	e.LastInput = data
	return nil
}

// Invoke implements inference.Engine.
func (e *Engine) Invoke(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Invocations++
	return e.InvokeErr
}

// Output implements inference.Engine.
func (e *Engine) Output(index int) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.Results) {
		return nil, errors.Errorf("output %d out of range", index)
	}
	return append([]float32(nil), e.Results[index]...), nil
}

// Close implements inference.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}
