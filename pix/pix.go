/*Package pix provides the bounded pixel arrays the readout simulation works on.

Bounds use the FITS convention: 1-indexed, inclusive on both ends, so a
full 4k CCD spans [1:4096,1:4096].  Images are float64 and row-major; the
electron image carries expected photoelectron counts, amplifier segments
carry ADU after gain division.
*/
package pix

import "fmt"

// Bounds is an inclusive, 1-indexed pixel rectangle.
type Bounds struct {
	Xmin, Xmax, Ymin, Ymax int
}

// Width returns the number of columns spanned by b.
func (b Bounds) Width() int {
	return b.Xmax - b.Xmin + 1
}

// Height returns the number of rows spanned by b.
func (b Bounds) Height() int {
	return b.Ymax - b.Ymin + 1
}

// Area returns the number of pixels in b.
func (b Bounds) Area() int {
	return b.Width() * b.Height()
}

// Contains reports whether o lies entirely within b.
func (b Bounds) Contains(o Bounds) bool {
	return o.Xmin >= b.Xmin && o.Xmax <= b.Xmax &&
		o.Ymin >= b.Ymin && o.Ymax <= b.Ymax
}

// Overlaps reports whether b and o share any pixels.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.Xmin <= o.Xmax && o.Xmin <= b.Xmax &&
		b.Ymin <= o.Ymax && o.Ymin <= b.Ymax
}

// Union returns the smallest bounds covering both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	out := b
	if o.Xmin < out.Xmin {
		out.Xmin = o.Xmin
	}
	if o.Xmax > out.Xmax {
		out.Xmax = o.Xmax
	}
	if o.Ymin < out.Ymin {
		out.Ymin = o.Ymin
	}
	if o.Ymax > out.Ymax {
		out.Ymax = o.Ymax
	}
	return out
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d:%d,%d:%d]", b.Xmin, b.Xmax, b.Ymin, b.Ymax)
}

// ShapeError indicates an array-shape inconsistency between two pixel
// arrays, or between an array and the matrix operating on it.
type ShapeError struct {
	Op   string
	Want string
	Got  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch, want %s got %s", e.Op, e.Want, e.Got)
}

// Image is a float64 pixel array covering Bounds, stored row-major with
// stride equal to the bounds width.
type Image struct {
	Bounds Bounds
	Data   []float64
}

// NewImage allocates a zero-filled image covering b.
func NewImage(b Bounds) *Image {
	return &Image{Bounds: b, Data: make([]float64, b.Area())}
}

// Width returns the number of columns in the image.
func (im *Image) Width() int { return im.Bounds.Width() }

// Height returns the number of rows in the image.
func (im *Image) Height() int { return im.Bounds.Height() }

func (im *Image) index(x, y int) int {
	return (y-im.Bounds.Ymin)*im.Bounds.Width() + (x - im.Bounds.Xmin)
}

// At returns the pixel value at (x, y) in bounds coordinates.
func (im *Image) At(x, y int) float64 {
	return im.Data[im.index(x, y)]
}

// Set assigns the pixel value at (x, y) in bounds coordinates.
func (im *Image) Set(x, y int, v float64) {
	im.Data[im.index(x, y)] = v
}

// SameShape reports whether im and o have equal width and height.  The
// bounds origins need not match; shape is what linear operators care about.
func (im *Image) SameShape(o *Image) bool {
	return im.Width() == o.Width() && im.Height() == o.Height()
}

// Copy returns a deep copy of im.
func (im *Image) Copy() *Image {
	out := &Image{Bounds: im.Bounds, Data: make([]float64, len(im.Data))}
	copy(out.Data, im.Data)
	return out
}

// SubImage copies the pixels of im inside b into a new image with bounds b.
func (im *Image) SubImage(b Bounds) (*Image, error) {
	if !im.Bounds.Contains(b) {
		return nil, &ShapeError{
			Op:   "SubImage",
			Want: fmt.Sprintf("region within %s", im.Bounds),
			Got:  b.String(),
		}
	}
	out := NewImage(b)
	for y := b.Ymin; y <= b.Ymax; y++ {
		srcOff := im.index(b.Xmin, y)
		dstOff := out.index(b.Xmin, y)
		copy(out.Data[dstOff:dstOff+b.Width()], im.Data[srcOff:srcOff+b.Width()])
	}
	return out, nil
}

// FlipX returns a copy of im with the column order reversed.
func (im *Image) FlipX() *Image {
	out := NewImage(im.Bounds)
	w := im.Width()
	for y := im.Bounds.Ymin; y <= im.Bounds.Ymax; y++ {
		row := im.index(im.Bounds.Xmin, y)
		for x := 0; x < w; x++ {
			out.Data[row+x] = im.Data[row+w-1-x]
		}
	}
	return out
}

// FlipY returns a copy of im with the row order reversed.
func (im *Image) FlipY() *Image {
	out := NewImage(im.Bounds)
	w := im.Width()
	h := im.Height()
	for y := 0; y < h; y++ {
		src := im.Data[(h-1-y)*w : (h-y)*w]
		copy(out.Data[y*w:(y+1)*w], src)
	}
	return out
}

// AddInto adds the pixels of sub into the region b of im.  The shape of
// sub must match the shape of b; positions are taken from b, not from
// sub's own bounds.
func (im *Image) AddInto(sub *Image, b Bounds) error {
	if !im.Bounds.Contains(b) {
		return &ShapeError{
			Op:   "AddInto",
			Want: fmt.Sprintf("region within %s", im.Bounds),
			Got:  b.String(),
		}
	}
	if sub.Width() != b.Width() || sub.Height() != b.Height() {
		return &ShapeError{
			Op:   "AddInto",
			Want: fmt.Sprintf("%dx%d", b.Width(), b.Height()),
			Got:  fmt.Sprintf("%dx%d", sub.Width(), sub.Height()),
		}
	}
	for y := 0; y < b.Height(); y++ {
		dst := im.index(b.Xmin, b.Ymin+y)
		src := y * sub.Width()
		for x := 0; x < b.Width(); x++ {
			im.Data[dst+x] += sub.Data[src+x]
		}
	}
	return nil
}

// AddConst adds v to every pixel of im.
func (im *Image) AddConst(v float64) {
	for i := range im.Data {
		im.Data[i] += v
	}
}

// Scale multiplies every pixel of im by v.
func (im *Image) Scale(v float64) {
	for i := range im.Data {
		im.Data[i] *= v
	}
}

// Fill sets every pixel of im to v.
func (im *Image) Fill(v float64) {
	for i := range im.Data {
		im.Data[i] = v
	}
}
