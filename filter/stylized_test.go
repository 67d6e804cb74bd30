package filter

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/opd-ai/camfx/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylizedFiltersPreserveSize(t *testing.T) {
	sizes := []struct{ w, h int }{{1, 1}, {7, 3}, {128, 112}, {320, 180}}
	filters := []Filter{
		NewCamcorderWithRand(seeded()),
		NewVCRWithRand(seeded()),
		NewRetroConsole(),
		NewMatrix(0),
		NewFireworks(NewSimulation(1, 1, seeded())),
	}

	for _, f := range filters {
		for _, s := range sizes {
			t.Run(f.Name(), func(t *testing.T) {
				buf := gradientFrame(s.w, s.h)
				require.NoError(t, SafeApply(f, buf))
				assert.Equal(t, s.w, buf.Width)
				assert.Equal(t, s.h, buf.Height)
				assert.Len(t, buf.Pix, s.w*s.h*4)
			})
		}
	}
}

func TestRetroConsoleOutputsOnlyPalette(t *testing.T) {
	for _, size := range []struct{ w, h int }{{640, 360}, {100, 50}, {1280, 720}} {
		buf := gradientFrame(size.w, size.h)
		require.NoError(t, NewRetroConsole().Apply(buf))

		for i := 0; i < len(buf.Pix); i += 4 {
			c := color.RGBA{R: buf.Pix[i], G: buf.Pix[i+1], B: buf.Pix[i+2], A: buf.Pix[i+3]}
			require.Contains(t, RetroPalette[:], c, "pixel %d", i/4)
		}
	}
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, 0, Quantize(0, 0, 0, 0, 0))
	assert.Equal(t, 3, Quantize(255, 255, 255, 3, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			idx := Quantize(128, 128, 128, x, y)
			assert.GreaterOrEqual(t, idx, 0)
			assert.LessOrEqual(t, idx, 3)
		}
	}
}

func TestCamcorderNoiseWithinTolerance(t *testing.T) {
	const w, h = 80, 80
	buf := frame.New(w, h)
	buf.Fill(100, 100, 100, 255)
	require.NoError(t, NewCamcorderWithRand(seeded()).Apply(buf))

	sr, sg, sb := SepiaMatrix.Transform(100, 100, 100)
	cx, cy := float64(w)/2, float64(h)/2
	maxDist := math.Hypot(cx, cy)

	// The date stamp occupies the bottom 50 rows.
	for y := 0; y < h-50; y++ {
		row := 1.0
		if y%3 == 0 {
			row = 0.85
		}
		for x := 0; x < w; x++ {
			k := row * (1 - math.Hypot(float64(x)-cx, float64(y)-cy)/maxDist*0.6)
			i := buf.Offset(x, y)
			tol := camcorderNoise*k + 1
			assert.InDelta(t, float64(sr)*k, float64(buf.Pix[i]), tol)
			assert.InDelta(t, float64(sg)*k, float64(buf.Pix[i+1]), tol)
			assert.InDelta(t, float64(sb)*k, float64(buf.Pix[i+2]), tol)
			assert.Equal(t, uint8(255), buf.Pix[i+3])
		}
	}
}

func TestCamcorderStagesRunAsChain(t *testing.T) {
	c := NewCamcorderWithRand(seeded())
	assert.Equal(t, "sepia+grain+scanlines+stamp", c.Stages())

	got := gradientFrame(60, 120)
	require.NoError(t, c.Apply(got))

	want := gradientFrame(60, 120)
	stages := []Filter{
		NewSepia(),
		&grain{rng: seeded(), amplitude: camcorderNoise},
		&tapeShading{step: camcorderScanlineStep, darken: scanlineDarken, vignette: camcorderVignette},
	}
	for _, f := range stages {
		require.NoError(t, f.Apply(want))
	}
	// Compare rows above the date stamp.
	n := want.Offset(0, 60)
	assert.Equal(t, want.Pix[:n], got.Pix[:n])
}

func TestCamcorderDrawsStamp(t *testing.T) {
	buf := frame.New(400, 100)
	buf.Fill(0, 0, 0, 255)
	require.NoError(t, NewCamcorderWithRand(seeded()).Apply(buf))

	// Yellow text has a strong red channel, which noise on black cannot reach.
	found := false
	for y := 50; y < 80 && !found; y++ {
		for x := 150; x < 380; x++ {
			if buf.Pix[buf.Offset(x, y)] > 150 {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "expected stamp pixels near the bottom-right corner")
}

func TestVCRDistortionBandMoves(t *testing.T) {
	v := NewVCRWithRand(seeded())
	a := gradientFrame(64, 200)
	a.Sequence = 0
	b := gradientFrame(64, 200)
	b.Sequence = 40

	require.NoError(t, v.Apply(a))
	require.NoError(t, v.Apply(b))
	assert.Len(t, a.Pix, 64*200*4)
	assert.NotEqual(t, a.Pix, b.Pix)
}

func TestVCRKeepsAlpha(t *testing.T) {
	buf := gradientFrame(50, 50)
	require.NoError(t, NewVCRWithRand(seeded()).Apply(buf))
	for i := 3; i < len(buf.Pix); i += 4 {
		require.Equal(t, uint8(255), buf.Pix[i])
	}
}

func TestClampIndex(t *testing.T) {
	assert.Equal(t, 0, clampIndex(-3, 10))
	assert.Equal(t, 9, clampIndex(12, 10))
	assert.Equal(t, 5, clampIndex(5, 10))
}

func TestMatrixOutputsGreenOnBlack(t *testing.T) {
	buf := gradientFrame(96, 64)
	require.NoError(t, NewMatrix(8).Apply(buf))

	lit := 0
	for i := 0; i < len(buf.Pix); i += 4 {
		require.Zero(t, buf.Pix[i], "red at %d", i/4)
		require.Zero(t, buf.Pix[i+2], "blue at %d", i/4)
		require.Equal(t, uint8(255), buf.Pix[i+3])
		if buf.Pix[i+1] > 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestRampIndex(t *testing.T) {
	assert.Len(t, MatrixRamp, 92)
	assert.Equal(t, 0, RampIndex(0))
	assert.Equal(t, len(MatrixRamp)-1, RampIndex(1))
	assert.Equal(t, 0, RampIndex(-1))
	assert.Equal(t, len(MatrixRamp)-1, RampIndex(2))
	assert.Less(t, RampIndex(0.2), RampIndex(0.8))
}

func TestOverlayAnchors(t *testing.T) {
	tests := []struct {
		name   string
		anchor Anchor
		x, y   int
		region image.Rectangle
	}{
		{"bottom-left", AnchorBottomLeft, 10, 60, image.Rect(10, 0, 200, 60)},
		{"bottom-right", AnchorBottomRight, 190, 60, image.Rect(0, 0, 190, 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := image.NewRGBA(image.Rect(0, 0, 200, 80))
			o := Overlay{Scale: 2, Fill: color.NRGBA{R: 255, G: 255, B: 255, A: 255}, Anchor: tt.anchor}
			o.Draw(dst, "PLAY", tt.x, tt.y)

			inside, outside := 0, 0
			for y := 0; y < 80; y++ {
				for x := 0; x < 200; x++ {
					if dst.RGBAAt(x, y).A == 0 {
						continue
					}
					if image.Pt(x, y).In(tt.region) {
						inside++
					} else {
						outside++
					}
				}
			}
			assert.Positive(t, inside)
			assert.Zero(t, outside)
		})
	}
}
