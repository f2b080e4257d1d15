package tflite

import (
	"path/filepath"
	"testing"

	"github.com/nvr-ai/label-image/inference"
	"github.com/stretchr/testify/assert"
)

func TestDequantize(t *testing.T) {
	assert.Equal(t, []float32{0, 0.5, -0.5}, Dequantize([]uint8{128, 129, 127}, 0.5, 128))
	assert.Equal(t, []float32{3, 200}, Dequantize([]uint8{3, 200}, 0, 0))
}

func TestOpenMissingModel(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tflite"), inference.Options{Threads: 1})
	assert.Error(t, err)
}
