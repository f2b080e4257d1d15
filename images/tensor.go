package images

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrChannels is returned for channel counts other than 1, 3 or 4.
var ErrChannels = errors.New("unsupported channel count")

// pixelsHWC resizes img to width x height and calls fn for every channel value in
// height, width, channel order.
func pixelsHWC(img image.Image, width, height, channels int, fn func(i int, v uint8)) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid target size %dx%d", width, height)
	}
	switch channels {
	case 1, 3, 4:
	default:
		return errors.Wrapf(ErrChannels, "got %d", channels)
	}

	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
		bounds = img.Bounds()
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := img.At(x, y)
			if channels == 1 {
				fn(i, color.GrayModel.Convert(px).(color.Gray).Y)
				i++
				continue
			}

			c := color.NRGBAModel.Convert(px).(color.NRGBA)
			fn(i, c.R)
			fn(i+1, c.G)
			fn(i+2, c.B)
			if channels == 4 {
				fn(i+3, c.A)
			}
			i += channels
		}
	}
	return nil
}

// ToUint8 resizes img and flattens it into a height x width x channels byte tensor.
//
// Arguments:
//   - img: The source image.
//   - width: Target width in pixels.
//   - height: Target height in pixels.
//   - channels: 1 for luma, 3 for RGB, 4 for RGBA.
//
// Returns:
//   - []uint8: The flattened tensor data.
//   - error: An error if the target size or channel count is invalid.
func ToUint8(img image.Image, width, height, channels int) ([]uint8, error) {
	out := make([]uint8, width*height*channels)
	if err := pixelsHWC(img, width, height, channels, func(i int, v uint8) {
		out[i] = v
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// ToFloat32 resizes img and flattens it into a normalised height x width x channels float
// tensor where each value is (v - mean) / std.
func ToFloat32(img image.Image, width, height, channels int, mean, std float32) ([]float32, error) {
	if std == 0 {
		return nil, errors.New("input std must not be zero")
	}

	out := make([]float32, width*height*channels)
	if err := pixelsHWC(img, width, height, channels, func(i int, v uint8) {
		out[i] = (float32(v) - mean) / std
	}); err != nil {
		return nil, err
	}
	return out, nil
}
