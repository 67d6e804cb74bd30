package sprite

import (
	"math/rand/v2"
	"testing"

	"github.com/opd-ai/camfx/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayFrame(w, h int, v byte) *frame.Buffer {
	buf := frame.New(w, h)
	buf.Fill(v, v, v, 255)
	return buf
}

func TestDefaultParams(t *testing.T) {
	p := DefaultOldFilmParams()
	assert.Equal(t, 0.3, p.Sepia)
	assert.Equal(t, 0.3, p.Noise)
	assert.Equal(t, 0.5, p.Scratch)
	assert.Equal(t, 0.3, p.ScratchDensity)
	assert.Equal(t, 0.3, p.Vignetting)
	assert.Equal(t, p, p.Clamp())
}

func TestClamp(t *testing.T) {
	p := OldFilmParams{Sepia: 2, Noise: -1, NoiseSize: 9, ScratchWidth: 0, Vignetting: 1.5}.Clamp()
	assert.Equal(t, 1.0, p.Sepia)
	assert.Equal(t, 0.0, p.Noise)
	assert.Equal(t, 2.0, p.NoiseSize)
	assert.Equal(t, 1.0, p.ScratchWidth)
	assert.Equal(t, 1.0, p.Vignetting)
}

func TestOldFilmRender(t *testing.T) {
	r := NewOldFilm(DefaultOldFilmParams(), rand.New(rand.NewPCG(3, 4)))
	t.Cleanup(func() { _ = r.Close() })

	buf := grayFrame(120, 80, 128)
	require.NoError(t, r.Render(buf))
	assert.Len(t, buf.Pix, 120*80*4)

	center := buf.Offset(60, 40)
	corner := buf.Offset(0, 0)
	for i := 3; i < len(buf.Pix); i += 4 {
		require.Equal(t, uint8(255), buf.Pix[i])
	}

	// Vignette leaves the corners darker than the center on average.
	sum := func(i int) int { return int(buf.Pix[i]) + int(buf.Pix[i+1]) + int(buf.Pix[i+2]) }
	assert.Greater(t, sum(center), sum(corner))
}

func TestOldFilmReseedsEveryFrame(t *testing.T) {
	r := NewOldFilm(DefaultOldFilmParams(), rand.New(rand.NewPCG(5, 6)))
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Render(grayFrame(32, 32, 90)))
	first := r.Seed()
	require.NoError(t, r.Render(grayFrame(32, 32, 90)))
	assert.NotEqual(t, first, r.Seed())
}

func TestOldFilmSepiaOnly(t *testing.T) {
	p := OldFilmParams{Sepia: 1, NoiseSize: 1, ScratchWidth: 1}
	r := NewOldFilm(p, nil)
	t.Cleanup(func() { _ = r.Close() })

	buf := grayFrame(4, 4, 100)
	require.NoError(t, r.Render(buf))
	assert.Equal(t, []byte{135, 120, 94, 255}, buf.Pix[0:4])
}

func TestOldFilmResizesSurface(t *testing.T) {
	r := NewOldFilm(DefaultOldFilmParams(), nil)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Render(grayFrame(64, 48, 10)))
	small := grayFrame(16, 8, 10)
	require.NoError(t, r.Render(small))
	assert.Len(t, small.Pix, 16*8*4)
}

func TestOldFilmClosed(t *testing.T) {
	r := NewOldFilm(DefaultOldFilmParams(), nil)
	require.NoError(t, r.Render(grayFrame(8, 8, 1)))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Render(grayFrame(8, 8, 1)), ErrClosed)
	assert.ErrorIs(t, NewOldFilm(DefaultOldFilmParams(), nil).Render(nil), frame.ErrNilBuffer)
}
