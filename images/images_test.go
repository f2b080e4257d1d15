package images

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, G: 10, B: 20, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{R: 0, G: 128, B: 255, A: 255})
			}
		}
	}
	return img
}

func TestWriteReadBMP(t *testing.T) {
	src := checkerboard(5, 3)
	path := filepath.Join(t.TempDir(), "board.bmp")

	require.NoError(t, WriteBMP(path, src))
	got, err := ReadBMP(path)
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), got.Bounds())
	r, g, b, _ := got.At(0, 0).RGBA()
	assert.Equal(t, []uint32{255, 10, 20}, []uint32{r >> 8, g >> 8, b >> 8}, "top-left row stays on top")
	r, g, b, _ = got.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 128, 255}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestReadBMPErrors(t *testing.T) {
	_, err := ReadBMP(filepath.Join(t.TempDir(), "missing.bmp"))
	assert.Error(t, err)

	_, err = DecodeBMP(bytes.NewReader([]byte("not a bitmap")))
	assert.Error(t, err)
}

func TestToUint8(t *testing.T) {
	src := checkerboard(2, 2)

	data, err := ToUint8(src, 2, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint8{
		255, 10, 20, 0, 128, 255,
		0, 128, 255, 255, 10, 20,
	}, data)

	gray, err := ToUint8(src, 2, 2, 1)
	require.NoError(t, err)
	assert.Len(t, gray, 4)
	assert.Equal(t, gray[0], gray[3])
}

func TestToUint8Resizes(t *testing.T) {
	data, err := ToUint8(checkerboard(64, 48), 300, 300, 3)
	require.NoError(t, err)
	assert.Len(t, data, 300*300*3)
}

func TestToFloat32Normalizes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 127, A: 255})

	data, err := ToFloat32(src, 1, 1, 3, 127.5, 127.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -1.0, data[1], 1e-6)
	assert.InDelta(t, -0.0039, data[2], 1e-3)

	_, err = ToFloat32(src, 1, 1, 3, 0, 0)
	assert.Error(t, err)
}

func TestTensorConversionRejectsBadShapes(t *testing.T) {
	src := checkerboard(2, 2)

	_, err := ToUint8(src, 2, 2, 2)
	assert.ErrorIs(t, err, ErrChannels)

	_, err = ToUint8(src, 0, 2, 3)
	assert.Error(t, err)
}

func TestRectFromNormalized(t *testing.T) {
	r := RectFromNormalized(0.1, 0.25, 0.5, 0.75, 200, 100)
	assert.Equal(t, Rect{X1: 50, Y1: 10, X2: 150, Y2: 50}, r)

	clamped := RectFromNormalized(-0.2, 0.9, 1.3, 1.4, 200, 100)
	assert.Equal(t, Rect{X1: 180, Y1: 0, X2: 200, Y2: 100}, clamped)

	flipped := RectFromNormalized(0.5, 0.75, 0.1, 0.25, 200, 100)
	assert.Equal(t, r, flipped)
}

func TestRect(t *testing.T) {
	assert.True(t, Rect{X1: 3, Y1: 3, X2: 3, Y2: 9}.Empty())
	assert.False(t, Rect{X1: 0, Y1: 0, X2: 1, Y2: 1}.Empty())
	assert.Equal(t, image.Rect(1, 2, 3, 4), Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}.ToRectangle())
}
