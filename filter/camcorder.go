package filter

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/opd-ai/camfx/frame"
)

const (
	camcorderNoise        = 20.0
	camcorderScanlineStep = 3
	scanlineDarken        = 0.85
	camcorderVignette     = 0.6
	camcorderInset        = 20
	camcorderStampLayout  = "02 Jan 06 15:04:05"
)

// Camcorder gives frames a 90s home-video look: sepia tone, grain,
// scanlines, vignette and a date stamp in the corner.
//
// The stages run as one Chain, so a fault in any of them leaves the frame
// untouched.
type Camcorder struct {
	chain *Chain
}

// NewCamcorder creates a camcorder filter with a randomly seeded noise source.
func NewCamcorder() *Camcorder {
	return NewCamcorderWithRand(newRand())
}

// NewCamcorderWithRand creates a camcorder filter drawing noise from rng.
func NewCamcorderWithRand(rng *rand.Rand) *Camcorder {
	return &Camcorder{
		chain: NewChain(
			NewSepia(),
			&grain{rng: rng, amplitude: camcorderNoise},
			&tapeShading{step: camcorderScanlineStep, darken: scanlineDarken, vignette: camcorderVignette},
			&dateStamp{
				layout: camcorderStampLayout,
				inset:  camcorderInset,
				overlay: Overlay{
					Scale:        2,
					Fill:         colorNRGBA(255, 255, 100, 0.8),
					Outline:      colorNRGBA(0, 0, 0, 0.7),
					OutlineWidth: 1,
					Anchor:       AnchorBottomRight,
				},
			},
		),
	}
}

// Apply rewrites buf in place.
func (c *Camcorder) Apply(buf *frame.Buffer) error {
	return c.chain.Apply(buf)
}

// Name returns the filter name.
func (c *Camcorder) Name() string {
	return "camcorder"
}

// Stages returns the chained stage names.
func (c *Camcorder) Stages() string {
	return c.chain.Name()
}

// grain adds independent noise to every color channel.
type grain struct {
	rng       *rand.Rand
	amplitude float64
}

func (g *grain) Apply(buf *frame.Buffer) error {
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = clamp255(float64(pix[i]) + noise(g.rng, g.amplitude))
		pix[i+1] = clamp255(float64(pix[i+1]) + noise(g.rng, g.amplitude))
		pix[i+2] = clamp255(float64(pix[i+2]) + noise(g.rng, g.amplitude))
	}
	return nil
}

func (g *grain) Name() string { return "grain" }

// tapeShading darkens every step-th row and fades toward the corners.
type tapeShading struct {
	step     int
	darken   float64
	vignette float64
}

func (s *tapeShading) Apply(buf *frame.Buffer) error {
	w, h := buf.Width, buf.Height
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Hypot(cx, cy)
	pix := buf.Pix

	for y := 0; y < h; y++ {
		rowScale := 1.0
		if y%s.step == 0 {
			rowScale = s.darken
		}
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			k := rowScale * (1 - math.Hypot(float64(x)-cx, dy)/maxDist*s.vignette)
			i := (y*w + x) * 4
			pix[i] = clamp255(float64(pix[i]) * k)
			pix[i+1] = clamp255(float64(pix[i+1]) * k)
			pix[i+2] = clamp255(float64(pix[i+2]) * k)
		}
	}
	return nil
}

func (s *tapeShading) Name() string { return "scanlines" }

// dateStamp prints the frame timestamp near the bottom-right corner.
type dateStamp struct {
	layout  string
	inset   int
	overlay Overlay
}

func (d *dateStamp) Apply(buf *frame.Buffer) error {
	stamp := strings.ToUpper(buf.Timestamp.Format(d.layout))
	d.overlay.Draw(buf.Image(), stamp, buf.Width-d.inset, buf.Height-d.inset)
	return nil
}

func (d *dateStamp) Name() string { return "stamp" }
