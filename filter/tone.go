package filter

import (
	"math"

	"github.com/opd-ai/camfx/frame"
)

// ColorMatrix is a 3x4 affine color transform: each output channel is the
// dot product of its row with (R, G, B) plus the row's offset.
type ColorMatrix [3][4]float64

// IdentityMatrix leaves colors unchanged.
var IdentityMatrix = ColorMatrix{
	{1, 0, 0, 0},
	{0, 1, 0, 0},
	{0, 0, 1, 0},
}

// GrayscaleMatrix matches CSS grayscale(100%).
var GrayscaleMatrix = ColorMatrix{
	{0.2126, 0.7152, 0.0722, 0},
	{0.2126, 0.7152, 0.0722, 0},
	{0.2126, 0.7152, 0.0722, 0},
}

// SepiaMatrix matches CSS sepia(100%).
var SepiaMatrix = ColorMatrix{
	{0.393, 0.769, 0.189, 0},
	{0.349, 0.686, 0.168, 0},
	{0.272, 0.534, 0.131, 0},
}

// InvertMatrix matches CSS invert(100%).
var InvertMatrix = ColorMatrix{
	{-1, 0, 0, 255},
	{0, -1, 0, 255},
	{0, 0, -1, 255},
}

// HueRotateMatrix returns the CSS hue-rotate(deg) matrix.
func HueRotateMatrix(deg float64) ColorMatrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return ColorMatrix{
		{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0},
		{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0},
		{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0},
	}
}

// Transform applies m to one pixel.
func (m *ColorMatrix) Transform(r, g, b uint8) (uint8, uint8, uint8) {
	fr, fg, fb := float64(r), float64(g), float64(b)
	return clamp255(m[0][0]*fr + m[0][1]*fg + m[0][2]*fb + m[0][3]),
		clamp255(m[1][0]*fr + m[1][1]*fg + m[1][2]*fb + m[1][3]),
		clamp255(m[2][0]*fr + m[2][1]*fg + m[2][2]*fb + m[2][3])
}

// ApplyTo runs m over every pixel of buf. Alpha is left untouched.
func (m *ColorMatrix) ApplyTo(buf *frame.Buffer) {
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2] = m.Transform(pix[i], pix[i+1], pix[i+2])
	}
}

// Tone is a deterministic single-pass color transform.
type Tone struct {
	name   string
	css    string
	matrix ColorMatrix
}

// NewPassThrough returns the identity tone filter.
func NewPassThrough() *Tone {
	return &Tone{name: "none", css: "none", matrix: IdentityMatrix}
}

// NewGrayscale returns the grayscale(100%) tone filter.
func NewGrayscale() *Tone {
	return &Tone{name: "grayscale", css: "grayscale(100%)", matrix: GrayscaleMatrix}
}

// NewSepia returns the sepia(100%) tone filter.
func NewSepia() *Tone {
	return &Tone{name: "sepia", css: "sepia(100%)", matrix: SepiaMatrix}
}

// NewInvert returns the invert(100%) tone filter.
func NewInvert() *Tone {
	return &Tone{name: "invert", css: "invert(100%)", matrix: InvertMatrix}
}

// NewHueRotate returns the hue-rotate(90deg) tone filter.
func NewHueRotate() *Tone {
	return &Tone{name: "hue-rotate", css: "hue-rotate(90deg)", matrix: HueRotateMatrix(90)}
}

// Apply transforms every pixel. The identity filter is a no-op.
func (t *Tone) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}
	if t.matrix == IdentityMatrix {
		return nil
	}
	t.matrix.ApplyTo(buf)
	return nil
}

// Name returns the filter name.
func (t *Tone) Name() string {
	return t.name
}

// FilterString returns the equivalent CSS filter string.
func (t *Tone) FilterString() string {
	return t.css
}

// Matrix returns the color matrix.
func (t *Tone) Matrix() ColorMatrix {
	return t.matrix
}
