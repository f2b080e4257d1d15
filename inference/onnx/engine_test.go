package onnx

import (
	"context"
	"testing"

	"github.com/nvr-ai/label-image/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestConvertInfo(t *testing.T) {
	infos := []ort.InputOutputInfo{
		{Name: "image_tensor:0", DataType: ort.TensorElementDataTypeUint8, Dimensions: ort.NewShape(-1, -1, -1, 3)},
		{Name: "detection_scores:0", DataType: ort.TensorElementDataTypeFloat, Dimensions: ort.NewShape(-1, 100)},
		{Name: "labels", DataType: ort.TensorElementDataTypeInt64, Dimensions: ort.NewShape(1)},
		{Name: "text", DataType: ort.TensorElementDataTypeString, Dimensions: ort.NewShape(1)},
	}

	got := convertInfo(infos)
	require.Len(t, got, 4)
	assert.Equal(t, inference.TensorInfo{Name: "image_tensor:0", Type: inference.UInt8, Shape: []int64{-1, -1, -1, 3}}, got[0])
	assert.Equal(t, inference.Float32, got[1].Type)
	assert.Equal(t, inference.Int64, got[2].Type)
	assert.Equal(t, inference.Unknown, got[3].Type)
	assert.Equal(t, []string{"image_tensor:0", "detection_scores:0", "labels", "text"}, names(got))
}

func TestWiden(t *testing.T) {
	assert.Equal(t, []float32{1, 255}, widen([]uint8{1, 255}))
	assert.Equal(t, []float32{-3, 18}, widen([]int64{-3, 18}))
}

func TestEngineGuards(t *testing.T) {
	e := &Engine{
		inputs:       []inference.TensorInfo{{Name: "in"}},
		outputs:      []inference.TensorInfo{{Name: "out"}},
		inputValues:  make([]ort.Value, 1),
		outputValues: make([]ort.Value, 1),
	}

	assert.Error(t, e.SetInput(1, []int64{1}, []float32{1}))
	assert.Error(t, e.SetInput(0, []int64{1}, []int{1}))

	err := e.Invoke(context.Background())
	assert.ErrorContains(t, err, "input in not set")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Invoke(ctx), context.Canceled)

	_, err = e.Output(0)
	assert.ErrorContains(t, err, "not computed")
	_, err = e.Output(2)
	assert.Error(t, err)

	assert.NoError(t, e.Close())
}
