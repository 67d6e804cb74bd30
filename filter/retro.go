package filter

import (
	"image"
	"image/color"

	"github.com/opd-ai/camfx/frame"
	xdraw "golang.org/x/image/draw"
)

// Native resolution of the retro console camera.
const (
	RetroWidth  = 128
	RetroHeight = 112
)

// RetroPalette holds the four console shades from darkest to lightest.
var RetroPalette = [4]color.RGBA{
	{R: 0x0f, G: 0x38, B: 0x0f, A: 0xff},
	{R: 0x30, G: 0x62, B: 0x30, A: 0xff},
	{R: 0x8b, G: 0xac, B: 0x0f, A: 0xff},
	{R: 0x9b, G: 0xbc, B: 0x0f, A: 0xff},
}

var bayer4 = [4][4]float64{
	{1, 9, 3, 11},
	{13, 5, 15, 7},
	{4, 12, 2, 10},
	{16, 8, 14, 6},
}

// RetroConsole reduces frames to a dithered four-shade palette at handheld
// console resolution, then blows them back up without smoothing.
type RetroConsole struct {
	small *image.RGBA
}

// NewRetroConsole creates a palette-reduction filter.
func NewRetroConsole() *RetroConsole {
	return &RetroConsole{small: image.NewRGBA(image.Rect(0, 0, RetroWidth, RetroHeight))}
}

// Apply rewrites buf in place. Every output pixel is a palette entry with
// full opacity.
func (r *RetroConsole) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}

	dst := buf.Image()
	xdraw.ApproxBiLinear.Scale(r.small, r.small.Bounds(), dst, dst.Bounds(), xdraw.Src, nil)

	pix := r.small.Pix
	for y := 0; y < RetroHeight; y++ {
		for x := 0; x < RetroWidth; x++ {
			i := r.small.PixOffset(x, y)
			c := RetroPalette[Quantize(pix[i], pix[i+1], pix[i+2], x, y)]
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
		}
	}

	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), r.small, r.small.Bounds(), xdraw.Src, nil)
	return nil
}

// Quantize returns the palette index for a pixel at (x, y) after ordered
// dithering of its luminance.
func Quantize(r, g, b uint8, x, y int) int {
	lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	v := lum + bayer4[y%4][x%4]*16 - 128
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return int(v / 64)
}

// Name returns the filter name.
func (r *RetroConsole) Name() string {
	return "gameboycolor"
}
