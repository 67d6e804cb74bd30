package media

import (
	"context"
	"math"
	"time"

	"github.com/gogpu/gg"
	"github.com/opd-ai/camfx/frame"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/sirupsen/logrus"
)

// DefaultKeyColor is the backdrop of PatternCamera, matching the default key
// of segment.KeyEngine.
const DefaultKeyColor = "#00b140"

// PatternCamera is a synthetic camera: a figure moving in front of a
// key-colored backdrop.
type PatternCamera struct {
	// Width and Height are used when a request carries no size.
	Width  int
	Height int
	// FrameRate is the number of frames per second.
	FrameRate int
	// Backdrop is the hex backdrop color. Empty selects DefaultKeyColor.
	Backdrop string
	// MaxFrames ends the video track after that many frames. Zero runs
	// until the track is stopped.
	MaxFrames int
	// Err is returned by every request when set.
	Err error
	// Clock drives frame timing. Nil selects the system clock.
	Clock pipeline.TimeProvider
}

// NewPatternCamera creates a 640x480 camera at 30 frames per second.
func NewPatternCamera() *PatternCamera {
	return &PatternCamera{Width: 640, Height: 480, FrameRate: 30}
}

// GetUserMedia returns a stream with a pattern video track when video is
// requested and a silent audio track when audio is requested.
func (p *PatternCamera) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tracks []*Track
	if c.WantsVideo() {
		w, h := p.Width, p.Height
		if c.Video.Width > 0 && c.Video.Height > 0 {
			w, h = c.Video.Width, c.Video.Height
		}
		t := NewVideoTrack("pattern camera", DefaultTrackBuffer)
		go p.produce(t, w, h)
		tracks = append(tracks, t)
	}
	if c.Audio {
		tracks = append(tracks, NewAudioTrack("pattern microphone"))
	}
	if len(tracks) == 0 {
		return nil, ErrNoVideo
	}

	logrus.WithFields(logrus.Fields{
		"function": "PatternCamera.GetUserMedia",
		"video":    c.WantsVideo(),
		"audio":    c.Audio,
	}).Debug("Pattern stream created")
	return NewStream(tracks...), nil
}

func (p *PatternCamera) produce(t *Track, w, h int) {
	clock := p.Clock
	if clock == nil {
		clock = pipeline.RealTimeProvider{}
	}
	rate := p.FrameRate
	if rate <= 0 {
		rate = 30
	}
	backdrop := p.Backdrop
	if backdrop == "" {
		backdrop = DefaultKeyColor
	}

	pm := gg.NewPixmap(w, h)
	dc := gg.NewContext(w, h, gg.WithPixmap(pm))
	defer dc.Close()

	ticker := clock.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	start := clock.Now()
	for n := 0; p.MaxFrames == 0 || n < p.MaxFrames; n++ {
		select {
		case <-t.Done():
			return
		case <-ticker.C():
		}
		now := clock.Now()
		drawFigure(dc, gg.Hex(backdrop), float64(w), float64(h), now.Sub(start).Seconds())

		view, err := frame.Wrap(w, h, pm.Data())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "PatternCamera.produce",
				"error":    err.Error(),
			}).Warn("Pattern frame rejected")
			break
		}
		buf := view.Clone()
		for i := 3; i < len(buf.Pix); i += 4 {
			buf.Pix[i] = 255
		}
		buf.Timestamp = now
		t.Deliver(buf)
	}

	logrus.WithFields(logrus.Fields{
		"function": "PatternCamera.produce",
		"frames":   p.MaxFrames,
	}).Debug("Pattern camera reached its frame limit")
	t.Stop()
}

// drawFigure paints a head and shoulders swaying in front of the backdrop.
func drawFigure(dc *gg.Context, backdrop gg.RGBA, w, h, t float64) {
	dc.ClearWithColor(backdrop)

	cx := w/2 + math.Sin(t*0.8)*w*0.15
	head := math.Min(w, h) * 0.14

	dc.SetRGBA(0.25, 0.2, 0.45, 1)
	dc.DrawRectangle(cx-head*1.8, h*0.55+head, head*3.6, h)
	_ = dc.Fill()

	dc.SetRGBA(0.87, 0.67, 0.53, 1)
	dc.DrawCircle(cx, h*0.55, head)
	_ = dc.Fill()
}
