package composite

import (
	"testing"

	"github.com/opd-ai/camfx/filter"
	"github.com/opd-ai/camfx/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(w, h int, seed byte) *frame.Buffer {
	buf := frame.New(w, h)
	for i := range buf.Pix {
		buf.Pix[i] = seed + byte(i)
	}
	return buf
}

func TestCompositeAllBackgroundNoSource(t *testing.T) {
	fg := testFrame(8, 6, 3)
	mask := frame.NewMask(8, 6)
	mask.Fill(frame.CategoryBackground)

	require.NoError(t, New().Composite(fg, nil, mask))
	for i := 0; i < len(fg.Pix); i += 4 {
		assert.Equal(t, []byte{0, 0, 0, 255}, fg.Pix[i:i+4])
	}
}

func TestCompositeAllForeground(t *testing.T) {
	fg := testFrame(8, 6, 3)
	want := fg.Clone()
	bg := testFrame(8, 6, 100)

	require.NoError(t, New().Composite(fg, bg, frame.NewMask(8, 6)))
	assert.Equal(t, want.Pix, fg.Pix)
}

func TestCompositeMixed(t *testing.T) {
	fg := testFrame(2, 2, 0)
	bg := testFrame(2, 2, 200)
	want := fg.Clone()
	mask := frame.NewMask(2, 2)
	mask.Data[1] = frame.CategoryBackground
	mask.Data[2] = frame.CategoryBackground

	require.NoError(t, New().Composite(fg, bg, mask))
	assert.Equal(t, want.Pix[0:4], fg.Pix[0:4])
	assert.Equal(t, bg.Pix[4:12], fg.Pix[4:12])
	assert.Equal(t, want.Pix[12:16], fg.Pix[12:16])
}

func TestCompositeMismatchedBackgroundIsBlack(t *testing.T) {
	c := New()
	fg := testFrame(4, 4, 1)
	mask := frame.NewMask(4, 4)
	mask.Fill(frame.CategoryBackground)

	require.NoError(t, c.Composite(fg, testFrame(2, 2, 9), mask))
	for i := 0; i < len(fg.Pix); i += 4 {
		assert.Equal(t, []byte{0, 0, 0, 255}, fg.Pix[i:i+4])
	}
	assert.Equal(t, uint64(1), c.Fallbacks())
}

func TestCompositeRejectsBadMask(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Composite(frame.New(4, 4), nil, frame.NewMask(3, 3)), frame.ErrMaskMismatch)
	assert.ErrorIs(t, c.Composite(frame.New(4, 4), nil, nil), frame.ErrMaskMismatch)
	assert.ErrorIs(t, c.Composite(nil, nil, frame.NewMask(1, 1)), frame.ErrNilBuffer)
}

type fakeShare struct{ frame *frame.Buffer }

func (f fakeShare) Snapshot(w, h int) *frame.Buffer {
	if f.frame == nil || f.frame.Width != w || f.frame.Height != h {
		return nil
	}
	return f.frame
}

func TestSources(t *testing.T) {
	fg := testFrame(16, 16, 50)

	t.Run("black", func(t *testing.T) {
		assert.Nil(t, Black{}.Background(fg))
		assert.Equal(t, "black", Black{}.Name())
	})

	t.Run("generated filters a copy", func(t *testing.T) {
		src := NewGenerated(filter.NewInvert())
		want := fg.Clone()
		bg := src.Background(fg)
		require.NotNil(t, bg)
		assert.Equal(t, want.Pix, fg.Pix, "foreground untouched")
		assert.Equal(t, 255-fg.Pix[0], bg.Pix[0])
		assert.Equal(t, "invert", src.Name())
		assert.Same(t, bg, src.Background(fg), "scratch reused")
	})

	t.Run("filter on blank", func(t *testing.T) {
		src := NewFilterOnBlank(filter.NewFireworks(filter.NewSimulation(16, 16, nil)))
		bg := src.Background(fg)
		require.NotNil(t, bg)
		assert.True(t, bg.SameSize(fg))
		assert.Equal(t, "fireworks", src.Name())
	})

	t.Run("capture", func(t *testing.T) {
		assert.Nil(t, Capture{}.Background(fg))
		shot := testFrame(16, 16, 7)
		assert.Same(t, shot, Capture{Share: fakeShare{frame: shot}}.Background(fg))
		assert.Nil(t, Capture{Share: fakeShare{}}.Background(fg))
	})
}
