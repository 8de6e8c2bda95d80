package raster

import (
	"image"

	"texswap/pkg/geometry"
)

// Mask is a per-pixel coverage map with the same dimensions as its source
// image. 0 is excluded, 255 fully included, values between are partial.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-zero mask.
func NewMask(width, height int) Mask {
	return Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the value at (x, y), or 0 outside the mask.
func (m Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set writes v at (x, y). Callers must stay in bounds.
func (m Mask) Set(x, y int, v uint8) {
	m.Pix[y*m.Width+x] = v
}

// Clone returns a deep copy.
func (m Mask) Clone() Mask {
	return Mask{Width: m.Width, Height: m.Height, Pix: append([]uint8(nil), m.Pix...)}
}

// Matches reports whether the mask has the same size as img.
func (m Mask) Matches(img image.Image) bool {
	b := img.Bounds()
	return m.Width == b.Dx() && m.Height == b.Dy() && len(m.Pix) == m.Width*m.Height
}

// Count returns the number of nonzero pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is set.
func (m Mask) Empty() bool {
	for _, v := range m.Pix {
		if v > 0 {
			return false
		}
	}
	return true
}

// BoundingBox returns the tightest box containing every nonzero pixel.
// ok is false for an empty mask.
func (m Mask) BoundingBox() (box geometry.RectInt, ok bool) {
	minX, minY, maxX, maxY := m.Width, m.Height, -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return geometry.RectInt{}, false
	}
	return geometry.RectInt{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// IsEdge reports whether (x, y) is set and has at least one unset 8-neighbour.
// Pixels on the image border are never reported.
func (m Mask) IsEdge(x, y int) bool {
	if x < 1 || y < 1 || x >= m.Width-1 || y >= m.Height-1 {
		return false
	}
	if m.Pix[y*m.Width+x] == 0 {
		return false
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && m.Pix[(y+dy)*m.Width+x+dx] == 0 {
				return true
			}
		}
	}
	return false
}

// EdgePixels returns every IsEdge pixel in raster order.
func (m Mask) EdgePixels() []geometry.Point2D {
	var pts []geometry.Point2D
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if m.IsEdge(x, y) {
				pts = append(pts, geometry.Point2D{X: float64(x), Y: float64(y)})
			}
		}
	}
	return pts
}

// ResizeNearest resamples the mask to w x h without introducing new values.
func (m Mask) ResizeNearest(w, h int) Mask {
	if m.Width == w && m.Height == h {
		return m.Clone()
	}
	out := NewMask(w, h)
	if m.Width == 0 || m.Height == 0 {
		return out
	}
	for y := 0; y < h; y++ {
		sy := y * m.Height / h
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = m.Pix[sy*m.Width+x*m.Width/w]
		}
	}
	return out
}

// Visualize renders the mask as an opaque grey image.
func (m Mask) Visualize() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		o := i * 4
		out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = v, v, v, 255
	}
	return out
}

// Weights returns the mask as float coverage in [0,1].
func (m Mask) Weights() []float64 {
	w := make([]float64, len(m.Pix))
	for i, v := range m.Pix {
		w[i] = float64(v) / 255
	}
	return w
}
