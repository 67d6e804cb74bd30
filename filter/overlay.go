package filter

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Anchor selects which corner of the text box sits on the overlay position.
type Anchor int

const (
	// AnchorBottomRight places the bottom-right corner of the text at the position.
	AnchorBottomRight Anchor = iota
	// AnchorBottomLeft places the bottom-left corner of the text at the position.
	AnchorBottomLeft
)

// Overlay draws a line of outlined text on top of a frame.
//
// Glyphs come from the 7x13 basic face and are upscaled by Scale with
// nearest-neighbor sampling, which keeps the blocky on-screen-display look.
type Overlay struct {
	Scale   int
	Fill    color.NRGBA
	Outline color.NRGBA
	// OutlineWidth is in unscaled glyph pixels. Zero disables the outline.
	OutlineWidth int
	Anchor       Anchor
}

// Draw renders s into dst with the anchor corner at (x, y).
// Text that falls outside dst is clipped.
func (o Overlay) Draw(dst *image.RGBA, s string, x, y int) {
	if s == "" {
		return
	}
	scale := o.Scale
	if scale < 1 {
		scale = 1
	}

	face := basicfont.Face7x13
	ow := o.OutlineWidth
	textW := font.MeasureString(face, s).Ceil()
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()

	glyphs := image.NewRGBA(image.Rect(0, 0, textW+2*ow, ascent+descent+2*ow))
	baseline := fixed.P(ow, ow+ascent)

	if ow > 0 {
		d := &font.Drawer{Dst: glyphs, Src: image.NewUniform(o.Outline), Face: face}
		for dy := -ow; dy <= ow; dy++ {
			for dx := -ow; dx <= ow; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				d.Dot = baseline.Add(fixed.P(dx, dy))
				d.DrawString(s)
			}
		}
	}
	d := &font.Drawer{Dst: glyphs, Src: image.NewUniform(o.Fill), Face: face, Dot: baseline}
	d.DrawString(s)

	w, h := glyphs.Bounds().Dx()*scale, glyphs.Bounds().Dy()*scale
	var target image.Rectangle
	switch o.Anchor {
	case AnchorBottomLeft:
		target = image.Rect(x, y-h, x+w, y)
	default:
		target = image.Rect(x-w, y-h, x, y)
	}
	xdraw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

// colorNRGBA builds a color from 8-bit channels and a [0, 1] alpha.
func colorNRGBA(r, g, b uint8, alpha float64) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: clamp255(alpha * 255)}
}
