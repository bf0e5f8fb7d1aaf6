package rimage

import "image"

// Mask is a binary image.
type Mask struct {
	width  int
	height int

	data []bool
}

func NewMask(width, height int) *Mask {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Mask{width, height, make([]bool, width*height)}
}

// NewMaskFromBytes sets every pixel whose byte is non-zero. pix is row-major with the given stride.
func NewMaskFromBytes(width, height, stride int, pix []byte) *Mask {
	m := NewMask(width, height)
	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+width]
		for x, b := range row {
			m.data[y*width+x] = b != 0
		}
	}
	return m
}

func (m *Mask) Width() int {
	return m.width
}

func (m *Mask) Height() int {
	return m.height
}

func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

func (m *Mask) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.width && y < m.height
}

func (m *Mask) Get(x, y int) bool {
	return m.data[y*m.width+x]
}

func (m *Mask) Set(x, y int, v bool) {
	m.data[y*m.width+x] = v
}

// Data returns the backing row-major slice.
func (m *Mask) Data() []bool {
	return m.data
}

// Clear unsets every pixel.
func (m *Mask) Clear() {
	for i := range m.data {
		m.data[i] = false
	}
}

func (m *Mask) Clone() *Mask {
	data := make([]bool, len(m.data))
	copy(data, m.data)
	return &Mask{m.width, m.height, data}
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// MarkSquare sets the (2*radius+1) sided square centred on (u, v), clipped to the mask.
func (m *Mask) MarkSquare(u, v, radius int) {
	r := SquareAround(u, v, radius).Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.data[y*m.width+r.Min.X : y*m.width+r.Max.X]
		for i := range row {
			row[i] = true
		}
	}
}

// SquareAround returns the (2*radius+1) sided square centred on (u, v).
func SquareAround(u, v, radius int) image.Rectangle {
	return image.Rect(u-radius, v-radius, u+radius+1, v+radius+1)
}
