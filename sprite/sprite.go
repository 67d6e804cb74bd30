// Package sprite renders the GPU-composited film effect.
//
// The effect was originally built on a sprite/filter engine; here the same
// parameter model is rendered in software with gogpu/gg. A Renderer owns a
// drawing surface and is created when its mode is entered and closed when the
// mode is left.
package sprite

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gogpu/gg"
	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// ErrClosed indicates Render was called after Close.
var ErrClosed = errors.New("renderer closed")

// Renderer draws one frame in place.
type Renderer interface {
	Render(buf *frame.Buffer) error
	Close() error
}

// OldFilmParams controls the film effect. All values are in [0, 1] except
// NoiseSize in [0.1, 2] and ScratchWidth in [1, 10].
type OldFilmParams struct {
	Sepia           float64
	Noise           float64
	NoiseSize       float64
	Scratch         float64
	ScratchDensity  float64
	ScratchWidth    float64
	Vignetting      float64
	VignettingAlpha float64
	VignettingBlur  float64
}

// DefaultOldFilmParams returns the vintage film preset.
func DefaultOldFilmParams() OldFilmParams {
	return OldFilmParams{
		Sepia:           0.3,
		Noise:           0.3,
		NoiseSize:       1.0,
		Scratch:         0.5,
		ScratchDensity:  0.3,
		ScratchWidth:    1.0,
		Vignetting:      0.3,
		VignettingAlpha: 1.0,
		VignettingBlur:  0.3,
	}
}

// Clamp returns p with every field forced into its range.
func (p OldFilmParams) Clamp() OldFilmParams {
	unit := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }
	return OldFilmParams{
		Sepia:           unit(p.Sepia),
		Noise:           unit(p.Noise),
		NoiseSize:       math.Max(0.1, math.Min(2, p.NoiseSize)),
		Scratch:         unit(p.Scratch),
		ScratchDensity:  unit(p.ScratchDensity),
		ScratchWidth:    math.Max(1, math.Min(10, p.ScratchWidth)),
		Vignetting:      unit(p.Vignetting),
		VignettingAlpha: unit(p.VignettingAlpha),
		VignettingBlur:  unit(p.VignettingBlur),
	}
}

// maxScratches is the scratch count at full density.
const maxScratches = 8

// OldFilm renders sepia, grain, scratches and a vignette.
type OldFilm struct {
	params OldFilmParams
	rng    *rand.Rand
	seed   float64

	pm *gg.Pixmap
	dc *gg.Context

	closed bool
}

// NewOldFilm creates a film renderer. A nil rng selects a randomly seeded
// generator.
func NewOldFilm(params OldFilmParams, rng *rand.Rand) *OldFilm {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &OldFilm{params: params.Clamp(), rng: rng}
}

// Params returns the clamped parameters.
func (o *OldFilm) Params() OldFilmParams {
	return o.params
}

// Seed returns the seed used for the last rendered frame.
func (o *OldFilm) Seed() float64 {
	return o.seed
}

// Render applies the effect to buf in place.
func (o *OldFilm) Render(buf *frame.Buffer) error {
	if o.closed {
		return ErrClosed
	}
	if err := buf.Validate(); err != nil {
		return err
	}

	o.seed = o.rng.Float64()
	o.ensureSurface(buf.Width, buf.Height)

	o.tone(buf)
	copy(o.pm.Data(), buf.Pix)

	if err := o.scratches(); err != nil {
		return err
	}
	if err := o.vignette(); err != nil {
		return err
	}

	copy(buf.Pix, o.pm.Data())
	for i := 3; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = 255
	}
	return nil
}

// tone blends each pixel toward its sepia value and adds grain. Grain is
// shared by all channels of a pixel and spans NoiseSize pixels.
func (o *OldFilm) tone(buf *frame.Buffer) {
	p := o.params
	cell := int(math.Max(1, math.Round(p.NoiseSize)))
	w, h := buf.Width, buf.Height
	cols := (w + cell - 1) / cell
	grain := make([]float64, cols)

	for y := 0; y < h; y++ {
		if y%cell == 0 {
			for i := range grain {
				grain[i] = (o.rng.Float64() - 0.5) * p.Noise * 255
			}
		}
		for x := 0; x < w; x++ {
			i := buf.Offset(x, y)
			r, g, b := float64(buf.Pix[i]), float64(buf.Pix[i+1]), float64(buf.Pix[i+2])
			sr := 0.393*r + 0.769*g + 0.189*b
			sg := 0.349*r + 0.686*g + 0.168*b
			sb := 0.272*r + 0.534*g + 0.131*b
			n := grain[x/cell]
			buf.Pix[i] = clamp255(r + (sr-r)*p.Sepia + n)
			buf.Pix[i+1] = clamp255(g + (sg-g)*p.Sepia + n)
			buf.Pix[i+2] = clamp255(b + (sb-b)*p.Sepia + n)
		}
	}
}

// scratches draws near-vertical light or dark lines. The count follows
// ScratchDensity and the seed of the frame.
func (o *OldFilm) scratches() error {
	p := o.params
	if p.Scratch == 0 || p.ScratchDensity == 0 {
		return nil
	}
	w, h := float64(o.pm.Width()), float64(o.pm.Height())
	n := int(math.Round(p.ScratchDensity * maxScratches * o.seed))

	o.dc.SetLineWidth(p.ScratchWidth)
	for i := 0; i < n; i++ {
		x := o.rng.Float64() * w
		drift := (o.rng.Float64() - 0.5) * w * 0.02
		shade := 1.0
		if o.rng.IntN(2) == 0 {
			shade = 0
		}
		o.dc.SetRGBA(shade, shade, shade, p.Scratch*0.6)
		o.dc.DrawLine(x, 0, x+drift, h)
		if err := o.dc.Stroke(); err != nil {
			return fmt.Errorf("stroke scratch: %w", err)
		}
	}
	return nil
}

// vignette darkens the corners with a radial gradient.
func (o *OldFilm) vignette() error {
	p := o.params
	if p.Vignetting == 0 || p.VignettingAlpha == 0 {
		return nil
	}
	w, h := float64(o.pm.Width()), float64(o.pm.Height())
	outer := math.Hypot(w, h) / 2
	inner := outer * (1 - p.Vignetting)
	soft := math.Max(0, math.Min(1, 1-p.VignettingBlur))

	o.dc.SetFillBrush(gg.NewRadialGradientBrush(w/2, h/2, inner, outer).
		AddColorStop(0, gg.RGBA{}).
		AddColorStop(soft, gg.RGBA{A: p.VignettingAlpha * 0.5}).
		AddColorStop(1, gg.RGBA{A: p.VignettingAlpha}))
	o.dc.DrawRectangle(0, 0, w, h)
	if err := o.dc.Fill(); err != nil {
		return fmt.Errorf("fill vignette: %w", err)
	}
	return nil
}

func (o *OldFilm) ensureSurface(w, h int) {
	if o.pm != nil && o.pm.Width() == w && o.pm.Height() == h {
		return
	}
	if o.dc != nil {
		_ = o.dc.Close()
	}
	o.pm = gg.NewPixmap(w, h)
	o.dc = gg.NewContext(w, h, gg.WithPixmap(o.pm))

	logrus.WithFields(logrus.Fields{
		"function": "OldFilm.ensureSurface",
		"width":    w,
		"height":   h,
	}).Debug("Allocated film surface")
}

// Close releases the drawing surface. Render fails afterwards.
func (o *OldFilm) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	if o.dc == nil {
		return nil
	}
	err := o.dc.Close()
	o.dc, o.pm = nil, nil
	return err
}

func clamp255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
