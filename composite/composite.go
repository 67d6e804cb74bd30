// Package composite merges a camera foreground with a background source
// using a segmentation mask.
package composite

import (
	"fmt"
	"sync/atomic"

	"github.com/opd-ai/camfx/filter"
	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// Compositor replaces background pixels of a frame.
type Compositor struct {
	fallbacks atomic.Uint64
}

// New creates a compositor.
func New() *Compositor {
	return &Compositor{}
}

// Composite rewrites fg in place. Pixels the mask marks as background take
// bg's RGBA at the same index; when bg is nil or a different size they
// become opaque black. Foreground pixels are untouched.
func (c *Compositor) Composite(fg, bg *frame.Buffer, mask *frame.Mask) error {
	if err := fg.Validate(); err != nil {
		return err
	}
	if mask == nil {
		return fmt.Errorf("%w: nil mask", frame.ErrMaskMismatch)
	}
	if err := mask.Matches(fg); err != nil {
		return err
	}

	useBG := bg != nil && bg.SameSize(fg) && bg.Validate() == nil
	if bg != nil && !useBG {
		c.fallbacks.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":  "Compositor.Composite",
			"fg_width":  fg.Width,
			"fg_height": fg.Height,
			"bg_width":  bg.Width,
			"bg_height": bg.Height,
		}).Debug("Background size mismatch, substituting black")
	}

	for i, cat := range mask.Data {
		if cat != frame.CategoryBackground {
			continue
		}
		o := i * 4
		if useBG {
			copy(fg.Pix[o:o+4], bg.Pix[o:o+4])
		} else {
			fg.Pix[o], fg.Pix[o+1], fg.Pix[o+2], fg.Pix[o+3] = 0, 0, 0, 255
		}
	}
	return nil
}

// Fallbacks returns how many times a mismatched background was replaced by
// black.
func (c *Compositor) Fallbacks() uint64 {
	return c.fallbacks.Load()
}

// Source supplies the background for one frame.
type Source interface {
	// Background returns a frame the size of fg, or nil for solid black.
	// The result is only valid until the next call.
	Background(fg *frame.Buffer) *frame.Buffer
	// Name identifies the source in logs.
	Name() string
}

// Black is the empty background.
type Black struct{}

// Background returns nil.
func (Black) Background(*frame.Buffer) *frame.Buffer { return nil }

// Name returns "black".
func (Black) Name() string { return "black" }

// Generated derives the background by running a filter over a copy of the
// foreground.
type Generated struct {
	Filter  filter.Filter
	scratch *frame.Buffer
}

// NewGenerated creates a generated source around f.
func NewGenerated(f filter.Filter) *Generated {
	return &Generated{Filter: f}
}

// Background returns the filtered copy, or nil if the filter faulted.
func (g *Generated) Background(fg *frame.Buffer) *frame.Buffer {
	g.scratch = reuse(g.scratch, fg)
	copy(g.scratch.Pix, fg.Pix)
	if err := filter.SafeApply(g.Filter, g.scratch); err != nil {
		return nil
	}
	return g.scratch
}

// Name returns the filter name.
func (g *Generated) Name() string { return g.Filter.Name() }

// FilterOnBlank runs a filter over an empty frame. It suits generators that
// ignore their input.
type FilterOnBlank struct {
	Filter  filter.Filter
	scratch *frame.Buffer
}

// NewFilterOnBlank creates a blank-canvas source around f.
func NewFilterOnBlank(f filter.Filter) *FilterOnBlank {
	return &FilterOnBlank{Filter: f}
}

// Background returns the generated frame, or nil if the filter faulted.
func (b *FilterOnBlank) Background(fg *frame.Buffer) *frame.Buffer {
	b.scratch = reuse(b.scratch, fg)
	b.scratch.Sequence, b.scratch.Timestamp = fg.Sequence, fg.Timestamp
	if err := filter.SafeApply(b.Filter, b.scratch); err != nil {
		return nil
	}
	return b.scratch
}

// Name returns the filter name.
func (b *FilterOnBlank) Name() string { return b.Filter.Name() }

// Snapshotter yields the latest frame of an auxiliary capture scaled to
// w x h, or nil when none is available.
type Snapshotter interface {
	Snapshot(w, h int) *frame.Buffer
}

// Capture uses an auxiliary capture as the background.
type Capture struct {
	Share Snapshotter
}

// Background returns the current snapshot or nil.
func (c Capture) Background(fg *frame.Buffer) *frame.Buffer {
	if c.Share == nil {
		return nil
	}
	return c.Share.Snapshot(fg.Width, fg.Height)
}

// Name returns "capture".
func (Capture) Name() string { return "capture" }

// reuse returns buf if it already matches ref's size, otherwise a new buffer.
func reuse(buf, ref *frame.Buffer) *frame.Buffer {
	if buf != nil && buf.SameSize(ref) {
		return buf
	}
	return frame.New(ref.Width, ref.Height)
}
