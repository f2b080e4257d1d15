package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Canon returns the rectangle with its corners ordered so X1 <= X2 and Y1 <= Y2.
func (r Rect) Canon() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Clamp restricts the rectangle to an image of the given size.
func (r Rect) Clamp(width, height int) Rect {
	r = r.Canon()
	r.X1 = min(max(r.X1, 0), width)
	r.X2 = min(max(r.X2, 0), width)
	r.Y1 = min(max(r.Y1, 0), height)
	r.Y2 = min(max(r.Y2, 0), height)
	return r
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// ToRectangle converts to the standard library rectangle type.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// RectFromNormalized scales a box given as fractions of the image size, in the
// [ymin, xmin, ymax, xmax] order used by SSD location tensors, to pixels and clamps it to the
// image.
func RectFromNormalized(ymin, xmin, ymax, xmax float32, width, height int) Rect {
	w, h := float32(width), float32(height)
	return Rect{
		X1: int(math32.Round(xmin * w)),
		Y1: int(math32.Round(ymin * h)),
		X2: int(math32.Round(xmax * w)),
		Y2: int(math32.Round(ymax * h)),
	}.Clamp(width, height)
}
