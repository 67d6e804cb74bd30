package screen

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"github.com/opd-ai/camfx/frame"
)

// PatternProvider is a synthetic screen: a gradient desktop with a few
// drifting windows.
type PatternProvider struct {
	Width  int
	Height int
	// Deny makes every request fail with ErrDenied.
	Deny bool
	// Delay imitates the time a user takes to answer the prompt.
	Delay time.Duration

	now func() time.Time
}

// NewPatternProvider creates a synthetic screen of the given size.
func NewPatternProvider(width, height int) *PatternProvider {
	return &PatternProvider{Width: width, Height: height, now: time.Now}
}

// Start returns a capture after Delay, or ErrDenied when Deny is set.
func (p *PatternProvider) Start(ctx context.Context) (Capture, error) {
	if p.Delay > 0 {
		t := time.NewTimer(p.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if p.Deny {
		return nil, fmt.Errorf("%w: pattern provider configured to deny", ErrDenied)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid pattern size %dx%d", ErrUnavailable, p.Width, p.Height)
	}

	now := p.now
	if now == nil {
		now = time.Now
	}
	pm := gg.NewPixmap(p.Width, p.Height)
	return &patternCapture{
		pm:    pm,
		dc:    gg.NewContext(p.Width, p.Height, gg.WithPixmap(pm)),
		now:   now,
		start: now(),
	}, nil
}

type patternCapture struct {
	mu      sync.Mutex
	pm      *gg.Pixmap
	dc      *gg.Context
	now     func() time.Time
	start   time.Time
	seq     uint64
	stopped bool
}

var windowColors = []gg.RGBA{
	gg.Hex("#3465a4"),
	gg.Hex("#cc0000"),
	gg.Hex("#73d216"),
}

func (c *patternCapture) Latest() *frame.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	ts := c.now()
	phase := ts.Sub(c.start).Seconds()
	w, h := float64(c.pm.Width()), float64(c.pm.Height())

	c.dc.SetFillBrush(gg.NewLinearGradientBrush(0, 0, w, h).
		AddColorStop(0, gg.Hex("#2e3436")).
		AddColorStop(1, gg.Hex("#555753")))
	c.dc.DrawRectangle(0, 0, w, h)
	_ = c.dc.Fill()

	for i, col := range windowColors {
		ww, wh := w*0.35, h*0.35
		x := (w-ww)/2 + math.Sin(phase*0.5+float64(i)*2.1)*w*0.25
		y := (h-wh)/2 + math.Cos(phase*0.4+float64(i)*1.7)*h*0.2
		c.dc.SetRGBA(0.93, 0.93, 0.93, 1)
		c.dc.DrawRectangle(x, y, ww, wh)
		_ = c.dc.Fill()
		c.dc.SetRGBA(col.R, col.G, col.B, 1)
		c.dc.DrawRectangle(x, y, ww, wh*0.12)
		_ = c.dc.Fill()
	}

	c.seq++
	view, err := frame.Wrap(c.pm.Width(), c.pm.Height(), c.pm.Data())
	if err != nil {
		return nil
	}
	buf := view.Clone()
	for i := 3; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = 255
	}
	buf.Sequence = c.seq
	buf.Timestamp = ts
	return buf
}

func (c *patternCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	c.stopped = true
	return c.dc.Close()
}
