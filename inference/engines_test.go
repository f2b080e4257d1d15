package inference

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineForModel(t *testing.T) {
	tests := []struct {
		path string
		want EngineType
		ok   bool
	}{
		{path: "ssd_mobilenet_v1_10.onnx", want: EngineONNX, ok: true},
		{path: "/models/detect.TFLITE", want: EngineTFLite, ok: true},
		{path: "detect.lite", want: EngineTFLite, ok: true},
		{path: "model.pb", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := EngineForModel(tt.path)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrUnknownEngine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterAndOpen(t *testing.T) {
	const fake EngineType = "fake-engine"
	var gotPath string
	var gotOpts Options
	Register(fake, func(path string, opts Options) (Engine, error) {
		gotPath, gotOpts = path, opts
		return nil, errors.New("boom")
	})

	assert.Contains(t, Engines(), fake)
	assert.Panics(t, func() { Register(fake, func(string, Options) (Engine, error) { return nil, nil }) })

	_, err := Open(fake, "model.bin", Options{Threads: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "model.bin", gotPath)
	assert.Equal(t, 2, gotOpts.Threads)

	_, err = Open("missing", "model.bin", Options{})
	assert.ErrorIs(t, err, ErrUnknownEngine)

	_, err = Open("", "model.unknown", Options{})
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestTensorInfo(t *testing.T) {
	info := TensorInfo{Name: "image", Type: UInt8, Shape: []int64{1, 300, 300, 3}}
	assert.Equal(t, int64(270000), info.Elements())
	assert.Equal(t, "image uint8 [1 300 300 3]", info.String())

	info.Shape = []int64{-1, -1, -1, 3}
	assert.Equal(t, int64(-1), info.Elements())
}

func TestPrecisionFor(t *testing.T) {
	assert.Equal(t, PrecisionFP16, PrecisionFor(true))
	assert.Equal(t, PrecisionFP32, PrecisionFor(false))
}
