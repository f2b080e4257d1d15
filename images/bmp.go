// Package images - Image decoding, encoding and tensor conversion utilities.
package images

import (
	"bufio"
	"image"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// DecodeBMP decodes a BMP image from r. Rows are returned top-down regardless of how the file
// stores them.
func DecodeBMP(r io.Reader) (image.Image, error) {
	img, err := bmp.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode bmp")
	}
	return img, nil
}

// ReadBMP reads and decodes the BMP file at path.
//
// Arguments:
//   - path: Path to the BMP file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be opened or decoded.
func ReadBMP(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %s", path)
	}
	defer f.Close()

	img, err := DecodeBMP(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}
	return img, nil
}

// EncodeBMP writes img to w in BMP format.
func EncodeBMP(w io.Writer, img image.Image) error {
	return errors.Wrap(bmp.Encode(w, img), "failed to encode bmp")
}

// WriteBMP encodes img as BMP into the file at path, replacing any existing file.
func WriteBMP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}

	w := bufio.NewWriter(f)
	if err := EncodeBMP(w, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "image %s", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
