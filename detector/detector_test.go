package detector

import (
	"context"
	"fmt"
	"image"
	"math"
	"testing"

	"github.com/nvr-ai/label-image/images"
	"github.com/nvr-ai/label-image/inference"
	"github.com/nvr-ai/label-image/inference/inferencetest"
	"github.com/nvr-ai/label-image/models"
	"github.com/nvr-ai/label-image/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLocations = []float32{
		0.1, 0.2, 0.5, 0.6,
		0, 0, 1, 1,
		0.5, 0.5, 1.2, 0.9,
		0, 0, 0.5, 0.5,
	}
	testClasses = []float32{0, 17, 1, 2}
	testScores  = []float32{0.9, 0.3, 0.7, 0.7}
)

func newTestEngine(input inference.DataType) *inferencetest.Engine {
	return inferencetest.NewSSD(300, 300, input, testLocations, testClasses, testScores, 4)
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Model = "detect.tflite"
	s.Labels = ""
	s.NumResults = 3
	s.Threshold = 0.5
	return s
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 100, 50))
}

func TestDetect(t *testing.T) {
	engine := newTestEngine(inference.UInt8)
	d, err := NewWithEngine(engine, testSettings(), models.COCOLabels)
	require.NoError(t, err)

	result, err := d.Detect(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, 4, result.NumDetections)
	assert.Nil(t, result.All)
	require.Len(t, result.Detections, 3)

	assert.Equal(t, Detection{
		Index: 0, Class: 0, Label: "person", Score: 0.9,
		Box: images.Rect{X1: 20, Y1: 5, X2: 60, Y2: 25},
	}, result.Detections[0])

	// Equal scores keep slot order.
	assert.Equal(t, 2, result.Detections[1].Index)
	assert.Equal(t, "bicycle", result.Detections[1].Label)
	assert.Equal(t, images.Rect{X1: 50, Y1: 25, X2: 90, Y2: 50}, result.Detections[1].Box, "box is clamped to the image")
	assert.Equal(t, 3, result.Detections[2].Index)
	assert.Equal(t, "car", result.Detections[2].Label)

	assert.Equal(t, 1, engine.Invocations)
	assert.Equal(t, []int64{1, 300, 300, 3}, engine.LastShape)
	require.IsType(t, []uint8{}, engine.LastInput)
	assert.Len(t, engine.LastInput.([]uint8), 300*300*3)
}

func TestDetectWithOverrides(t *testing.T) {
	d, err := NewWithEngine(newTestEngine(inference.UInt8), testSettings(), models.COCOLabels)
	require.NoError(t, err)

	result, err := d.DetectWith(context.Background(), testImage(), 10, 0.25)
	require.NoError(t, err)
	require.Len(t, result.Detections, 4)
	assert.Equal(t, []int{0, 2, 3, 1}, []int{
		result.Detections[0].Index,
		result.Detections[1].Index,
		result.Detections[2].Index,
		result.Detections[3].Index,
	})

	result, err = d.DetectWith(context.Background(), testImage(), 0, 0.25)
	require.NoError(t, err)
	assert.Empty(t, result.Detections)
}

func TestDetectFloatInputWithDynamicDims(t *testing.T) {
	engine := newTestEngine(inference.Float32)
	engine.InputInfo[0].Shape = []int64{1, -1, -1, 3}

	d, err := NewWithEngine(engine, testSettings(), models.COCOLabels)
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 50, 100, 3}, engine.LastShape)
	require.IsType(t, []float32{}, engine.LastInput)
	data := engine.LastInput.([]float32)
	require.Len(t, data, 50*100*3)
	// A transparent black pixel normalises to (0 - 127.5) / 127.5.
	assert.InDelta(t, -1.0, data[0], 1e-6)
}

func TestDetectWarmupAndLoops(t *testing.T) {
	tests := []struct {
		name        string
		loops       int
		warmups     int
		invocations int
	}{
		{name: "single run skips warmup", loops: 1, warmups: 2, invocations: 1},
		{name: "loops add warmup", loops: 3, warmups: 2, invocations: 5},
		{name: "loops without warmup", loops: 2, warmups: 0, invocations: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(inference.UInt8)
			s := testSettings()
			s.LoopCount = tt.loops
			s.WarmupRuns = tt.warmups
			s.Profiling = true

			d, err := NewWithEngine(engine, s, models.COCOLabels)
			require.NoError(t, err)

			_, err = d.Detect(context.Background(), testImage())
			require.NoError(t, err)
			assert.Equal(t, tt.invocations, engine.Invocations)

			invoke, ok := d.Profiler().Summary("invoke")
			require.True(t, ok)
			assert.Equal(t, int64(tt.loops), invoke.Count, "only timed runs are profiled")
		})
	}
}

func TestDetectInvokeError(t *testing.T) {
	engine := newTestEngine(inference.UInt8)
	engine.InvokeErr = errors.New("boom")

	d, err := NewWithEngine(engine, testSettings(), models.COCOLabels)
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), testImage())
	assert.ErrorIs(t, err, engine.InvokeErr)
}

func TestDetectCancelled(t *testing.T) {
	d, err := NewWithEngine(newTestEngine(inference.UInt8), testSettings(), models.COCOLabels)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, testImage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWithEngineModelShape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *inferencetest.Engine)
	}{
		{name: "two inputs", mutate: func(e *inferencetest.Engine) {
			e.InputInfo = append(e.InputInfo, e.InputInfo[0])
		}},
		{name: "three outputs", mutate: func(e *inferencetest.Engine) {
			e.OutputInfo = e.OutputInfo[:3]
		}},
		{name: "flat input", mutate: func(e *inferencetest.Engine) {
			e.InputInfo[0].Shape = []int64{1, 270000}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(inference.UInt8)
			tt.mutate(engine)
			_, err := NewWithEngine(engine, testSettings(), models.COCOLabels)
			assert.ErrorIs(t, err, ErrModelShape)
		})
	}
}

func TestDetectUnsupportedInputType(t *testing.T) {
	d, err := NewWithEngine(newTestEngine(inference.Int64), testSettings(), models.COCOLabels)
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), testImage())
	assert.ErrorContains(t, err, "cannot handle input type")
}

func TestDecode(t *testing.T) {
	dec := Decoder{Labels: models.COCOLabels, Width: 100, Height: 50, NumResults: 5, Threshold: 0.5, Verbose: true}

	t.Run("count clamped to data", func(t *testing.T) {
		result, err := dec.Decode(testLocations, testClasses, testScores, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, result.NumDetections)
		assert.Len(t, result.Detections, 3)
		require.Len(t, result.All, 4)
		assert.Equal(t, "dog", result.All[1].Label)
	})

	for _, num := range []float32{float32(math.Inf(1)), 1e20, 4.5} {
		t.Run(fmt.Sprintf("oversized count %g", num), func(t *testing.T) {
			result, err := dec.Decode(testLocations, testClasses, testScores, num)
			require.NoError(t, err)
			assert.Equal(t, 4, result.NumDetections)
			assert.Len(t, result.Detections, 3)
		})
	}

	t.Run("negative and fractional counts", func(t *testing.T) {
		for num, want := range map[float32]int{-1: 0, float32(math.Inf(-1)): 0, 0.5: 0, 2.9: 2} {
			result, err := dec.Decode(testLocations, testClasses, testScores, num)
			require.NoError(t, err)
			assert.Equal(t, want, result.NumDetections, "num %g", num)
		}
	})

	t.Run("unrepresentable class", func(t *testing.T) {
		classes := []float32{float32(math.NaN()), 1e12, 1, 2}
		result, err := dec.Decode(testLocations, classes, testScores, 4)
		require.NoError(t, err)
		require.Len(t, result.Detections, 3)
		assert.Equal(t, postprocess.InvalidClass, result.Detections[0].Class)
		assert.Equal(t, "unknown(-1)", result.Detections[0].Label)
		assert.Equal(t, postprocess.InvalidClass, result.All[1].Class)
	})

	t.Run("partial count", func(t *testing.T) {
		result, err := dec.Decode(testLocations, testClasses, testScores, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, result.NumDetections)
		require.Len(t, result.Detections, 1)
		assert.Equal(t, 0, result.Detections[0].Index)
	})

	t.Run("non finite count", func(t *testing.T) {
		result, err := dec.Decode(testLocations, testClasses, testScores, float32(math.NaN()))
		require.NoError(t, err)
		assert.Zero(t, result.NumDetections)
		assert.Empty(t, result.Detections)
	})

	t.Run("negative results", func(t *testing.T) {
		bad := dec
		bad.NumResults = -1
		_, err := bad.Decode(testLocations, testClasses, testScores, 4)
		assert.Error(t, err)
	})
}

func TestClose(t *testing.T) {
	engine := newTestEngine(inference.UInt8)
	d, err := NewWithEngine(engine, testSettings(), models.COCOLabels)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.True(t, engine.Closed)
}
