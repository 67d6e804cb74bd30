package filter

import (
	"math"
	"math/rand/v2"

	"github.com/opd-ai/camfx/frame"
)

const (
	vcrScanlineStep     = 4
	vcrDistortionHeight = 60
	vcrNoise            = 25.0
	vcrInset            = 48
)

// VCR imitates tape playback: scanlines, a rolling chroma distortion band,
// analog noise and a PLAY indicator.
//
// The band position is derived from Buffer.Sequence, so the filter holds no
// frame counter of its own.
type VCR struct {
	rng     *rand.Rand
	overlay Overlay
}

// NewVCR creates a VCR filter with a randomly seeded noise source.
func NewVCR() *VCR {
	return NewVCRWithRand(newRand())
}

// NewVCRWithRand creates a VCR filter drawing noise from rng.
func NewVCRWithRand(rng *rand.Rand) *VCR {
	return &VCR{
		rng: rng,
		overlay: Overlay{
			Scale:  3,
			Fill:   colorNRGBA(255, 255, 255, 0.7),
			Anchor: AnchorBottomLeft,
		},
	}
}

// Apply rewrites buf in place.
func (v *VCR) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}

	w, h := buf.Width, buf.Height
	pix := buf.Pix

	for y := 0; y < h; y += vcrScanlineStep {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			red := scanlineDarken
			if v.rng.IntN(2) == 0 {
				red = 0.84
			}
			pix[i] = clamp255(float64(pix[i]) * red)
			pix[i+1] = clamp255(float64(pix[i+1]) * scanlineDarken)
			pix[i+2] = clamp255(float64(pix[i+2]) * scanlineDarken)
		}
	}

	v.distort(buf)

	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = clamp255(float64(pix[i]) + noise(v.rng, vcrNoise))
		pix[i+1] = clamp255(float64(pix[i+1]) + noise(v.rng, vcrNoise))
		pix[i+2] = clamp255(float64(pix[i+2]) + noise(v.rng, vcrNoise))
	}

	v.overlay.Draw(buf.Image(), "PLAY "+buf.Timestamp.Format("15:04:05"), vcrInset, h-vcrInset)
	return nil
}

// distort shifts red and blue horizontally in opposite directions inside the
// band. Source reads are taken from a copy of the row and clamped to it.
func (v *VCR) distort(buf *frame.Buffer) {
	w, h := buf.Width, buf.Height
	seq := float64(buf.Sequence)
	start := int((buf.Sequence * 2) % uint64(h))
	row := make([]byte, w*4)

	for y := start; y < start+vcrDistortionHeight && y < h; y++ {
		offset := int(math.Floor(math.Sin(float64(y)*0.1+seq*0.1) * 10))
		line := buf.Pix[y*w*4 : (y+1)*w*4]
		copy(row, line)
		for x := 0; x < w; x++ {
			line[x*4] = row[clampIndex(x+offset, w)*4]
			line[x*4+2] = row[clampIndex(x-offset, w)*4+2]
		}
	}
}

// Name returns the filter name.
func (v *VCR) Name() string {
	return "vcr"
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
