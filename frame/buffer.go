package frame

import (
	"fmt"
	"image"
	"time"

	"github.com/opd-ai/camfx/limits"
)

// Buffer is a single RGBA frame.
//
// Pix holds Width*Height*4 bytes. Sequence increases by one for every frame
// the decode sink receives and Timestamp is the capture time; filters that
// animate (scanline drift, on-screen clocks) read them instead of keeping
// their own counters.
type Buffer struct {
	Width     int
	Height    int
	Pix       []byte
	Sequence  uint64
	Timestamp time.Time
}

// New allocates a zeroed (transparent black) buffer.
func New(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, limits.BufferSize(width, height)),
	}
}

// Wrap builds a buffer around existing pixel data without copying.
func Wrap(width, height int, pix []byte) (*Buffer, error) {
	if err := limits.ValidateBufferSize(len(pix), width, height); err != nil {
		return nil, err
	}
	return &Buffer{Width: width, Height: height, Pix: pix}, nil
}

// Validate checks the buffer invariant len(Pix) == Width*Height*4.
func (b *Buffer) Validate() error {
	if b == nil {
		return ErrNilBuffer
	}
	return limits.ValidateBufferSize(len(b.Pix), b.Width, b.Height)
}

// PixelCount returns Width*Height.
func (b *Buffer) PixelCount() int {
	return b.Width * b.Height
}

// SameSize reports whether other has the same dimensions.
func (b *Buffer) SameSize(other *Buffer) bool {
	return other != nil && b.Width == other.Width && b.Height == other.Height
}

// Clone returns a deep copy including metadata.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{
		Width:     b.Width,
		Height:    b.Height,
		Pix:       make([]byte, len(b.Pix)),
		Sequence:  b.Sequence,
		Timestamp: b.Timestamp,
	}
	copy(out.Pix, b.Pix)
	return out
}

// CopyFrom overwrites b with src's pixels and metadata. Both buffers must
// have the same dimensions.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src == nil {
		return ErrNilBuffer
	}
	if !b.SameSize(src) {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, b.Width, b.Height, src.Width, src.Height)
	}
	copy(b.Pix, src.Pix)
	b.Sequence = src.Sequence
	b.Timestamp = src.Timestamp
	return nil
}

// Fill sets every pixel to the given color.
func (b *Buffer) Fill(r, g, bl, a uint8) {
	for i := 0; i+3 < len(b.Pix); i += 4 {
		b.Pix[i] = r
		b.Pix[i+1] = g
		b.Pix[i+2] = bl
		b.Pix[i+3] = a
	}
}

// Image returns an *image.RGBA that shares Pix. Writes through the image are
// visible in the buffer.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * limits.BytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Offset returns the index of pixel (x, y) in Pix.
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * limits.BytesPerPixel
}
