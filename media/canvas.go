package media

import (
	"sync"

	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// Canvas is the output surface of the pipeline. Every published frame is
// kept as the current picture and fanned out to captured streams.
type Canvas struct {
	mu       sync.Mutex
	current  *frame.Buffer
	captures map[*Track]struct{}
	frames   uint64
	closed   bool
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{captures: make(map[*Track]struct{})}
}

// Publish copies buf onto the canvas. The canvas is resized to buf.
func (c *Canvas) Publish(buf *frame.Buffer) {
	if buf.Validate() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.current == nil || !c.current.SameSize(buf) {
		c.current = frame.New(buf.Width, buf.Height)
		logrus.WithFields(logrus.Fields{
			"function": "Canvas.Publish",
			"width":    buf.Width,
			"height":   buf.Height,
		}).Debug("Canvas resized")
	}
	_ = c.current.CopyFrom(buf)
	c.current.Sequence, c.current.Timestamp = buf.Sequence, buf.Timestamp
	c.frames++

	for t := range c.captures {
		t.Deliver(c.current.Clone())
	}
}

// Snapshot returns a copy of the current picture, or nil before the first
// publish.
func (c *Canvas) Snapshot() *frame.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.Clone()
}

// Frames returns how many frames have been published.
func (c *Canvas) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// CaptureStream returns a video-only stream fed by every later publish.
// Stopping its track detaches it.
func (c *Canvas) CaptureStream() *Stream {
	t := NewVideoTrack("canvas", DefaultTrackBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		t.Stop()
		return NewStream(t)
	}
	c.captures[t] = struct{}{}
	c.mu.Unlock()

	t.OnStop(func() {
		c.mu.Lock()
		delete(c.captures, t)
		c.mu.Unlock()
	})
	return NewStream(t)
}

// Close stops every captured track.
func (c *Canvas) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	tracks := make([]*Track, 0, len(c.captures))
	for t := range c.captures {
		tracks = append(tracks, t)
	}
	c.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
}
