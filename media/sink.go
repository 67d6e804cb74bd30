package media

import (
	"sync"
	"time"

	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// DecodeSink holds the latest frame of an attached video track. It is the
// frame source of the render loop.
type DecodeSink struct {
	mu      sync.Mutex
	track   *Track
	latest  *frame.Buffer
	seq     uint64
	width   int
	height  int
	ended   bool
	stopRun chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
}

// NewDecodeSink creates an empty sink.
func NewDecodeSink() *DecodeSink {
	return &DecodeSink{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Attach starts reading frames from track, replacing any previously
// attached track. The sink ends when the attached track ends.
func (s *DecodeSink) Attach(track *Track) error {
	if track == nil || track.Kind != KindVideo {
		return ErrNoVideo
	}
	if track.Stopped() {
		return ErrTrackEnded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSinkEnded
	}
	if s.stopRun != nil {
		close(s.stopRun)
	}
	stop := make(chan struct{})
	s.track, s.stopRun = track, stop

	logrus.WithFields(logrus.Fields{
		"function": "DecodeSink.Attach",
		"track_id": track.ID,
		"label":    track.Label,
	}).Info("Video track attached")

	go s.read(track, stop)
	return nil
}

func (s *DecodeSink) read(track *Track, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-track.Done():
			select {
			case <-stop:
				// Replaced before the track ended.
				return
			default:
			}
			s.end("track ended")
			return
		case buf := <-track.Frames():
			s.store(buf)
		}
	}
}

func (s *DecodeSink) store(buf *frame.Buffer) {
	if err := buf.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DecodeSink.store",
			"error":    err.Error(),
		}).Warn("Dropping invalid frame")
		return
	}

	s.mu.Lock()
	s.seq++
	buf.Sequence = s.seq
	if buf.Timestamp.IsZero() {
		buf.Timestamp = time.Now()
	}
	resized := buf.Width != s.width || buf.Height != s.height
	s.width, s.height = buf.Width, buf.Height
	s.latest = buf
	s.mu.Unlock()

	if resized {
		logrus.WithFields(logrus.Fields{
			"function": "DecodeSink.store",
			"width":    buf.Width,
			"height":   buf.Height,
		}).Debug("Video dimensions known")
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *DecodeSink) end(reason string) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()

	s.doneOnce.Do(func() {
		close(s.done)
		logrus.WithFields(logrus.Fields{
			"function": "DecodeSink.end",
			"reason":   reason,
		}).Info("Decode sink ended")
	})
}

// Latest returns the most recent frame, or nil before the first one.
// Callers must not modify it.
func (s *DecodeSink) Latest() *frame.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Dimensions returns the size of the latest frame.
func (s *DecodeSink) Dimensions() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Ready is closed once the first frame has arrived.
func (s *DecodeSink) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed at end of stream.
func (s *DecodeSink) Done() <-chan struct{} {
	return s.done
}

// Close detaches the track and ends the sink. The track itself is not
// stopped.
func (s *DecodeSink) Close() {
	s.mu.Lock()
	if s.stopRun != nil {
		close(s.stopRun)
		s.stopRun = nil
	}
	s.mu.Unlock()
	s.end("closed")
}
