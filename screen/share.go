package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// Capture is a live screen stream.
type Capture interface {
	// Latest returns the most recent screen frame or nil if none has
	// arrived. The caller must not modify it.
	Latest() *frame.Buffer
	// Stop ends the stream.
	Stop() error
}

// Provider acquires a screen capture, prompting the user if needed.
type Provider interface {
	Start(ctx context.Context) (Capture, error)
}

// State is the acquisition state of a Share.
type State int

const (
	// StateIdle means nothing has been requested.
	StateIdle State = iota
	// StatePending means a request is waiting for the user.
	StatePending
	// StateActive means a capture is running.
	StateActive
	// StateDenied means the last request failed.
	StateDenied
)

// Share memoizes a single screen capture.
type Share struct {
	provider Provider

	mu         sync.Mutex
	state      State
	capture    Capture
	err        error
	generation uint64
	starts     int

	scratch *frame.Buffer
}

// NewShare creates a share backed by p.
func NewShare(p Provider) *Share {
	return &Share{provider: p}
}

// Ensure requests the capture once. It returns immediately; the request
// completes in the background.
func (s *Share) Ensure(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return s.state
	}
	s.state = StatePending
	s.starts++
	gen := s.generation

	logrus.WithFields(logrus.Fields{
		"function": "Share.Ensure",
		"attempt":  s.starts,
	}).Info("Requesting screen share")

	go s.start(ctx, gen)
	return StatePending
}

func (s *Share) start(ctx context.Context, gen uint64) {
	capture, err := s.provider.Start(ctx)
	if err == nil && capture == nil {
		err = ErrUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// Released while the prompt was open.
		if capture != nil {
			_ = capture.Stop()
		}
		return
	}

	if err != nil {
		s.state = StateDenied
		s.err = err
		level := logrus.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = logrus.DebugLevel
		}
		logrus.WithFields(logrus.Fields{
			"function": "Share.start",
			"error":    err.Error(),
		}).Log(level, "Screen share not available, background stays black")
		return
	}

	s.capture = capture
	s.state = StateActive
	logrus.WithFields(logrus.Fields{
		"function": "Share.start",
	}).Info("Screen share active")
}

// State returns the acquisition state.
func (s *Share) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed request.
func (s *Share) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Starts returns how many requests have been issued.
func (s *Share) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Snapshot returns the latest screen frame scaled to w x h, or nil when no
// capture is active or no frame has arrived. The buffer is reused by the
// next call.
func (s *Share) Snapshot(w, h int) *frame.Buffer {
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()

	if capture == nil {
		return nil
	}
	latest := capture.Latest()
	if latest == nil || latest.Validate() != nil {
		return nil
	}

	if s.scratch == nil || s.scratch.Width != w || s.scratch.Height != h {
		s.scratch = frame.New(w, h)
	}
	s.scratch.Sequence, s.scratch.Timestamp = latest.Sequence, latest.Timestamp

	if latest.Width == w && latest.Height == h {
		copy(s.scratch.Pix, latest.Pix)
		return s.scratch
	}
	dst := s.scratch.Image()
	src := latest.Image()
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return s.scratch
}

// Release stops the capture and forgets any denial, so the next Ensure
// prompts again. A request still waiting for the user is discarded.
func (s *Share) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}
	if s.capture != nil {
		if err := s.capture.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Share.Release",
				"error":    err.Error(),
			}).Warn("Failed to stop screen capture")
		}
	}

	s.generation++
	s.capture = nil
	s.err = nil
	s.state = StateIdle
	s.scratch = nil

	logrus.WithFields(logrus.Fields{
		"function": "Share.Release",
	}).Debug("Screen share released")
}
