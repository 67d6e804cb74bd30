package segment

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/opd-ai/camfx/frame"
)

// KeyEngine classifies pixels close to a key color as background.
type KeyEngine struct {
	key       color.RGBA
	tolerance float64
	latency   time.Duration
}

// NewKeyEngine creates a chroma-key engine. Pixels whose RGB distance from
// key is at most tolerance are background.
func NewKeyEngine(key color.RGBA, tolerance float64) *KeyEngine {
	return &KeyEngine{key: key, tolerance: tolerance}
}

// WithLatency makes Segment wait d before answering, imitating model
// inference time.
func (k *KeyEngine) WithLatency(d time.Duration) *KeyEngine {
	k.latency = d
	return k
}

// Segment builds the mask for buf.
func (k *KeyEngine) Segment(ctx context.Context, buf *frame.Buffer, _ time.Duration) (*frame.Mask, error) {
	if k.latency > 0 {
		t := time.NewTimer(k.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return frame.MaskFromConfidence(buf.Width, buf.Height, k.Confidence(buf), KeyThreshold)
}

// KeyThreshold is the confidence at which a pixel counts as background.
const KeyThreshold = 0.5

// Confidence returns a background confidence in [0, 1] for every pixel of
// buf. Pixels at exactly the tolerance distance from the key score
// KeyThreshold; the key color itself scores 1.
func (k *KeyEngine) Confidence(buf *frame.Buffer) []float32 {
	conf := make([]float32, buf.PixelCount())
	kr, kg, kb := float64(k.key.R), float64(k.key.G), float64(k.key.B)
	tol2 := k.tolerance * k.tolerance
	for i := range conf {
		p := buf.Pix[i*4:]
		dr, dg, db := float64(p[0])-kr, float64(p[1])-kg, float64(p[2])-kb
		d2 := dr*dr + dg*dg + db*db
		switch {
		case d2 == 0:
			conf[i] = 1
		case tol2 == 0:
			conf[i] = 0
		default:
			conf[i] = float32(tol2 / (tol2 + d2))
		}
	}
	return conf
}

// Close is a no-op.
func (k *KeyEngine) Close() error {
	return nil
}

// NewKeyLoader returns a Loader producing a KeyEngine.
func NewKeyLoader(key color.RGBA, tolerance float64) Loader {
	return func(ctx context.Context, _ Options) (Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewKeyEngine(key, tolerance), nil
	}
}

// ParseKeyColor parses a "#rrggbb" color.
func ParseKeyColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidKeyColor, s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q: %v", ErrInvalidKeyColor, s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
