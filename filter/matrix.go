package filter

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/opd-ai/camfx/frame"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MatrixRamp orders glyphs from darkest to lightest.
const MatrixRamp = "`.-':_,^=;><+!rc*/z?sLTv)J7(|Fi{C}fI31tlu[neoZ5Yxjya]2ESwqkP6h9d4VpOGbUAKXHm8RD#$Bg0MNWQ%&@"

// MatrixCellSize is the default glyph cell edge in pixels.
const MatrixCellSize = 8

var matrixGreen = color.RGBA{G: 0x80, A: 0xff}

// Matrix redraws a frame as green glyphs on black, one glyph per cell chosen
// by the cell's average brightness.
type Matrix struct {
	cell  int
	atlas []*image.Alpha
}

// NewMatrix creates a glyph filter with cells of the given edge length.
// Non-positive sizes use MatrixCellSize.
func NewMatrix(cell int) *Matrix {
	if cell <= 0 {
		cell = MatrixCellSize
	}
	return &Matrix{cell: cell, atlas: buildAtlas(cell)}
}

// buildAtlas renders every ramp glyph once and shrinks it to a cell-sized mask.
func buildAtlas(cell int) []*image.Alpha {
	face := basicfont.Face7x13
	m := face.Metrics()
	gh := (m.Ascent + m.Descent).Ceil()
	atlas := make([]*image.Alpha, len(MatrixRamp))

	for i := range MatrixRamp {
		full := image.NewAlpha(image.Rect(0, 0, face.Advance, gh))
		d := &font.Drawer{
			Dst:  full,
			Src:  image.Opaque,
			Face: face,
			Dot:  fixed.P(0, m.Ascent.Ceil()),
		}
		d.DrawString(MatrixRamp[i : i+1])

		tile := image.NewAlpha(image.Rect(0, 0, cell, cell))
		xdraw.ApproxBiLinear.Scale(tile, tile.Bounds(), full, full.Bounds(), xdraw.Src, nil)
		atlas[i] = tile
	}
	return atlas
}

// Apply rewrites buf in place.
func (m *Matrix) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}

	w, h := buf.Width, buf.Height
	indices := make([]int, 0, ((w+m.cell-1)/m.cell)*((h+m.cell-1)/m.cell))
	for y := 0; y < h; y += m.cell {
		for x := 0; x < w; x += m.cell {
			indices = append(indices, RampIndex(cellBrightness(buf, x, y, m.cell)))
		}
	}

	buf.Fill(0, 0, 0, 255)
	dst := buf.Image()
	src := image.NewUniform(matrixGreen)

	n := 0
	for y := 0; y < h; y += m.cell {
		for x := 0; x < w; x += m.cell {
			r := image.Rect(x, y, x+m.cell, y+m.cell)
			draw.DrawMask(dst, r, src, image.Point{}, m.atlas[indices[n]], image.Point{}, draw.Over)
			n++
		}
	}
	return nil
}

// cellBrightness returns the mean of (r+g+b)/3/255 over the cell at (x0, y0),
// clipped to the frame.
func cellBrightness(buf *frame.Buffer, x0, y0, cell int) float64 {
	x1, y1 := min(x0+cell, buf.Width), min(y0+cell, buf.Height)
	sum, count := 0, 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := buf.Offset(x, y)
			sum += int(buf.Pix[i]) + int(buf.Pix[i+1]) + int(buf.Pix[i+2])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count) / 3 / 255
}

// RampIndex maps a brightness in [0, 1] to a MatrixRamp position.
func RampIndex(brightness float64) int {
	last := len(MatrixRamp) - 1
	idx := int(brightness * float64(last))
	if idx < 0 {
		return 0
	}
	if idx > last {
		return last
	}
	return idx
}

// Name returns the filter name.
func (m *Matrix) Name() string {
	return "matrix"
}
