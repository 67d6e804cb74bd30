package frame

import "fmt"

// Category values produced by a binary segmentation model.
const (
	CategoryForeground uint8 = 0
	CategoryBackground uint8 = 1
)

// Mask is a per-pixel classification aligned 1:1 with a Buffer.
type Mask struct {
	Width    int
	Height   int
	Data     []uint8
	Sequence uint64
}

// NewMask allocates an all-foreground mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]uint8, width*height),
	}
}

// MaskFromConfidence converts a background-confidence map into categories.
// Values at or above threshold become CategoryBackground.
func MaskFromConfidence(width, height int, confidence []float32, threshold float32) (*Mask, error) {
	if len(confidence) != width*height {
		return nil, fmt.Errorf("%w: %d confidences for %dx%d", ErrMaskMismatch, len(confidence), width, height)
	}
	m := NewMask(width, height)
	for i, c := range confidence {
		if c >= threshold {
			m.Data[i] = CategoryBackground
		}
	}
	return m, nil
}

// IsBackground reports whether pixel i was classified as background.
func (m *Mask) IsBackground(i int) bool {
	return m.Data[i] == CategoryBackground
}

// Matches checks that the mask covers exactly buf's pixels.
func (m *Mask) Matches(buf *Buffer) error {
	if m == nil || buf == nil {
		return ErrNilBuffer
	}
	if m.Width != buf.Width || m.Height != buf.Height || len(m.Data) != buf.PixelCount() {
		return fmt.Errorf("%w: mask %dx%d (%d entries), frame %dx%d",
			ErrMaskMismatch, m.Width, m.Height, len(m.Data), buf.Width, buf.Height)
	}
	return nil
}

// Fill sets every entry to category.
func (m *Mask) Fill(category uint8) {
	for i := range m.Data {
		m.Data[i] = category
	}
}

// BackgroundCount returns the number of background pixels.
func (m *Mask) BackgroundCount() int {
	n := 0
	for _, c := range m.Data {
		if c == CategoryBackground {
			n++
		}
	}
	return n
}
