package pipeline

import (
	"time"

	"github.com/opd-ai/camfx/composite"
	"github.com/opd-ai/camfx/filter"
	"github.com/opd-ai/camfx/frame"
	"github.com/opd-ai/camfx/screen"
	"github.com/opd-ai/camfx/segment"
	"github.com/opd-ai/camfx/sprite"
)

// FrameSource yields decoded camera frames.
type FrameSource interface {
	// Latest returns the most recent decoded frame, or nil before the first.
	// The caller must not modify it.
	Latest() *frame.Buffer
	// Done is closed when the stream ends.
	Done() <-chan struct{}
}

// FramePublisher receives processed frames.
type FramePublisher interface {
	Publish(buf *frame.Buffer)
}

// Context is the state of one pipeline instance.
//
// The exported fields are collaborators wired by the owner before the loop
// starts. Segmenter, Share and NewRenderer are optional: without them the
// modes that need them pass frames through unmodified.
type Context struct {
	Sink       FrameSource
	Canvas     FramePublisher
	Segmenter  *segment.Adapter
	Share      *screen.Share
	Compositor *composite.Compositor
	Stats      *Stats
	// NewRenderer builds the renderer for ModeOldFilm on mode entry.
	NewRenderer func() sprite.Renderer
	// MatrixCellSize overrides the glyph cell of the matrix background.
	MatrixCellSize int

	mode       Mode
	generation uint64
	started    time.Time
	lastSeq    uint64
	seen       bool

	direct      map[Mode]filter.Filter
	backgrounds map[Mode]composite.Source
	fireworks   *filter.Simulation
	renderer    sprite.Renderer
	pending     *pendingClassification

	initFailureLogged bool
}

// pendingClassification is the one outstanding segmentation request.
type pendingClassification struct {
	mode       Mode
	generation uint64
	results    <-chan segment.Result
}

// Mode returns the active mode. Only the loop goroutine may call it.
func (c *Context) Mode() Mode {
	return c.mode
}

// Generation returns the mode generation, incremented on every mode change.
func (c *Context) Generation() uint64 {
	return c.generation
}

// Fireworks returns the fireworks simulation, or nil before the fireworks
// mode was first entered.
func (c *Context) Fireworks() *filter.Simulation {
	return c.fireworks
}

// directFilter returns the filter for a tone or stylized mode, creating it on
// first use.
func (c *Context) directFilter(m Mode) filter.Filter {
	if f, ok := c.direct[m]; ok {
		return f
	}
	var f filter.Filter
	switch m {
	case ModeGrayscale:
		f = filter.NewGrayscale()
	case ModeSepia:
		f = filter.NewSepia()
	case ModeInvert:
		f = filter.NewInvert()
	case ModeHueRotate:
		f = filter.NewHueRotate()
	case ModeCamcorder:
		f = filter.NewCamcorder()
	case ModeVCR:
		f = filter.NewVCR()
	case ModeRetroConsole:
		f = filter.NewRetroConsole()
	default:
		f = filter.NewPassThrough()
	}
	if c.direct == nil {
		c.direct = make(map[Mode]filter.Filter)
	}
	c.direct[m] = f
	return f
}

// background returns the background source for a segmented mode, creating
// it on first use.
func (c *Context) background(m Mode) composite.Source {
	if src, ok := c.backgrounds[m]; ok {
		return src
	}
	var src composite.Source
	switch m {
	case ModeMatrixBackground:
		src = composite.NewGenerated(filter.NewMatrix(c.MatrixCellSize))
	case ModeFireworksBackground:
		if c.fireworks == nil {
			c.fireworks = filter.NewSimulation(0, 0, nil)
		}
		src = composite.NewFilterOnBlank(filter.NewFireworks(c.fireworks))
	case ModeScreenBackground:
		if c.Share == nil {
			src = composite.Black{}
		} else {
			src = composite.Capture{Share: c.Share}
		}
	default:
		src = composite.Black{}
	}
	if c.backgrounds == nil {
		c.backgrounds = make(map[Mode]composite.Source)
	}
	c.backgrounds[m] = src
	return src
}

// rendererFilter lets SafeApply contain renderer faults.
type rendererFilter struct {
	r sprite.Renderer
}

func (f rendererFilter) Apply(buf *frame.Buffer) error { return f.r.Render(buf) }
func (f rendererFilter) Name() string                  { return "old-film" }
