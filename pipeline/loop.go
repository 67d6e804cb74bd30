package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/opd-ai/camfx/composite"
	"github.com/opd-ai/camfx/filter"
	"github.com/opd-ai/camfx/frame"
	"github.com/opd-ai/camfx/segment"
	"github.com/opd-ai/camfx/settings"
	"github.com/sirupsen/logrus"
)

// DefaultFrameRate is the tick rate used when Options.FrameRate is zero.
const DefaultFrameRate = 60

// Options configures a Loop.
type Options struct {
	// FrameRate is the number of ticks per second.
	FrameRate int
	// InitialMode is applied on the first tick.
	InitialMode Mode
	// TimeProvider supplies the clock and ticker. Nil selects the system clock.
	TimeProvider TimeProvider
}

// Loop is the render loop over a Context.
type Loop struct {
	pc       *Context
	interval time.Duration
	time     TimeProvider

	requested chan Mode
	current   atomic.Int32
	running   atomic.Bool
	done      chan struct{}
}

// NewLoop creates a loop over pc. Missing Compositor and Stats are created.
func NewLoop(pc *Context, opts Options) *Loop {
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = RealTimeProvider{}
	}
	if pc.Compositor == nil {
		pc.Compositor = composite.New()
	}
	if pc.Stats == nil {
		pc.Stats = NewStats()
	}

	l := &Loop{
		pc:        pc,
		interval:  time.Second / time.Duration(opts.FrameRate),
		time:      opts.TimeProvider,
		requested: make(chan Mode, 1),
		done:      make(chan struct{}),
	}
	pc.mode = ModeNone
	l.current.Store(int32(ModeNone))
	if opts.InitialMode != ModeNone {
		l.SetMode(opts.InitialMode)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewLoop",
		"frame_rate":   opts.FrameRate,
		"initial_mode": opts.InitialMode.String(),
	}).Debug("Render loop created")
	return l
}

// Context returns the pipeline context.
func (l *Loop) Context() *Context {
	return l.pc
}

// Mode returns the mode applied by the most recent tick. Safe from any
// goroutine.
func (l *Loop) Mode() Mode {
	return Mode(l.current.Load())
}

// Stats returns the loop counters.
func (l *Loop) Stats() *Stats {
	return l.pc.Stats
}

// Metrics returns the loop counters together with the compositor's
// background fallbacks.
func (l *Loop) Metrics() Metrics {
	m := l.pc.Stats.Snapshot()
	m.CompositeFallbacks = l.pc.Compositor.Fallbacks()
	return m
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// SetMode requests a mode change for the next tick. Only the latest request
// is kept.
func (l *Loop) SetMode(m Mode) {
	if !m.Valid() {
		return
	}
	for {
		select {
		case l.requested <- m:
			return
		default:
		}
		select {
		case <-l.requested:
		default:
		}
	}
}

// SetModeTag parses tag and requests the mode. Unknown tags leave the
// current mode in place.
func (l *Loop) SetModeTag(tag string) error {
	m, err := ParseMode(tag)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SetModeTag",
			"tag":      tag,
		}).Warn("Ignoring unknown filter mode")
		return err
	}
	l.SetMode(m)
	return nil
}

// Follow applies the host's current selection and every later change until
// ctx is done. It blocks.
func (l *Loop) Follow(ctx context.Context, sub settings.Subscriber, req settings.Requester) {
	changes := sub.Subscribe(ctx)

	if req != nil {
		if tag, err := req.Current(ctx); err == nil {
			_ = l.SetModeTag(tag)
		} else {
			logrus.WithFields(logrus.Fields{
				"function": "Follow",
				"error":    err.Error(),
			}).Warn("Could not read current filter selection")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case tag, ok := <-changes:
			if !ok {
				return
			}
			_ = l.SetModeTag(tag)
		}
	}
}

// Run ticks until the sink ends or ctx is cancelled. It returns nil on end
// of stream and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if l.pc.Sink == nil || l.pc.Canvas == nil {
		return ErrNoSink
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)
	defer l.shutdown()

	l.pc.started = l.time.Now()
	ticker := l.time.NewTicker(l.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"function":    "Loop.Run",
		"interval_ms": l.interval.Milliseconds(),
	}).Info("Render loop started")

	for {
		var results <-chan segment.Result
		if l.pc.pending != nil {
			results = l.pc.pending.results
		}

		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Loop.Run",
			}).Info("Render loop cancelled")
			return ctx.Err()
		case <-l.pc.Sink.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Loop.Run",
			}).Info("Decode sink ended, render loop stopped")
			return nil
		case res, ok := <-results:
			if !ok {
				l.pc.pending = nil
				continue
			}
			l.handleResult(res)
		case <-ticker.C():
			if !l.Step(ctx) {
				return nil
			}
		}
	}
}

// Step runs one tick. It reports false once the sink has ended.
func (l *Loop) Step(ctx context.Context) bool {
	pc := l.pc
	start := l.time.Now()
	if pc.started.IsZero() {
		pc.started = start
	}
	defer func() { pc.Stats.observeTick(l.time.Now().Sub(start)) }()

	l.applyRequestedMode(ctx)

	select {
	case <-pc.Sink.Done():
		return false
	default:
	}

	latest := pc.Sink.Latest()
	if latest == nil || latest.Validate() != nil || (pc.seen && latest.Sequence == pc.lastSeq) {
		pc.Stats.skipped.Add(1)
		return true
	}

	switch kind := pc.mode.Kind(); kind {
	case KindTonePass, KindStylizedDirect:
		pc.lastSeq, pc.seen = latest.Sequence, true
		l.runDirect(latest.Clone())
	case KindGPUComposited:
		pc.lastSeq, pc.seen = latest.Sequence, true
		l.runRenderer(latest.Clone())
	case KindSegmentedPlain, KindSegmentedReplaced:
		if pc.pending != nil {
			pc.Stats.backpressure.Add(1)
			l.trace("Classification in flight, tick skipped", latest)
			return true
		}
		pc.lastSeq, pc.seen = latest.Sequence, true
		l.runSegmented(ctx, latest.Clone())
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Loop.Step",
			"kind":     kind.String(),
		}).Error("No handler for mode kind, passing frame through")
		l.publish(latest.Clone())
	}
	return true
}

func (l *Loop) runDirect(buf *frame.Buffer) {
	f := l.pc.directFilter(l.pc.mode)
	if err := filter.SafeApply(f, buf); err != nil {
		l.pc.Stats.filterFaults.Add(1)
	}
	l.publish(buf)
}

func (l *Loop) runRenderer(buf *frame.Buffer) {
	if l.pc.renderer != nil {
		if err := filter.SafeApply(rendererFilter{l.pc.renderer}, buf); err != nil {
			l.pc.Stats.filterFaults.Add(1)
		}
	}
	l.publish(buf)
}

func (l *Loop) runSegmented(ctx context.Context, buf *frame.Buffer) {
	pc := l.pc
	if pc.Segmenter == nil {
		l.publish(buf)
		return
	}

	switch pc.Segmenter.Ensure(ctx) {
	case segment.StateReady:
	case segment.StateFailed:
		if !pc.initFailureLogged {
			pc.initFailureLogged = true
			logrus.WithFields(logrus.Fields{
				"function": "Loop.runSegmented",
				"mode":     pc.mode.String(),
				"error":    errString(pc.Segmenter.Err()),
			}).Warn("Segmentation unavailable, passing frames through until the mode is reselected")
		}
		l.publish(buf)
		return
	default:
		pc.Stats.notReady.Add(1)
		l.trace("Segmentation engine loading, frame passed through", buf)
		l.publish(buf)
		return
	}

	if pc.mode == ModeScreenBackground && pc.Share != nil {
		pc.Share.Ensure(ctx)
	}

	results, err := pc.Segmenter.Classify(ctx, buf, l.timestamp(buf))
	if err != nil {
		pc.Stats.classifyFaults.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Loop.runSegmented",
			"error":    err.Error(),
		}).Debug("Classification not issued")
		l.publish(buf)
		return
	}
	pc.pending = &pendingClassification{
		mode:       pc.mode,
		generation: pc.generation,
		results:    results,
	}
}

// handleResult composites a finished classification if it still belongs to
// the active mode.
func (l *Loop) handleResult(res segment.Result) {
	pc := l.pc
	p := pc.pending
	pc.pending = nil
	if p == nil {
		return
	}

	if p.mode != pc.mode || p.generation != pc.generation {
		pc.Stats.staleResults.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":     "Loop.handleResult",
			"issued_mode":  p.mode.String(),
			"current_mode": pc.mode.String(),
		}).Debug("Dropping classification issued under a previous mode")
		return
	}

	if res.Err != nil {
		pc.Stats.classifyFaults.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Loop.handleResult",
			"error":    res.Err.Error(),
		}).Debug("Classification failed, frame passed through")
		l.publish(res.Frame)
		return
	}

	bg := pc.background(pc.mode).Background(res.Frame)
	if err := pc.Compositor.Composite(res.Frame, bg, res.Mask); err != nil {
		pc.Stats.filterFaults.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Loop.handleResult",
			"error":    err.Error(),
		}).Warn("Composite failed, frame passed through")
	}
	l.publish(res.Frame)
}

// HandlePending waits for the outstanding classification, if any, and
// handles it. It reports whether a result was handled.
func (l *Loop) HandlePending(ctx context.Context) bool {
	p := l.pc.pending
	if p == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case res, ok := <-p.results:
		if !ok {
			l.pc.pending = nil
			return false
		}
		l.handleResult(res)
		return true
	}
}

// applyRequestedMode runs the exit and entry hooks for a pending mode change.
func (l *Loop) applyRequestedMode(ctx context.Context) {
	var next Mode
	select {
	case next = <-l.requested:
	default:
		return
	}

	pc := l.pc
	prev := pc.mode
	if next == prev {
		return
	}

	l.exitMode(prev, next)
	pc.mode = next
	pc.generation++
	l.current.Store(int32(next))
	pc.Stats.modeChanges.Add(1)
	l.enterMode(ctx, next)

	logrus.WithFields(logrus.Fields{
		"function":   "applyRequestedMode",
		"from":       prev.String(),
		"to":         next.String(),
		"kind":       next.Kind().String(),
		"generation": pc.generation,
	}).Info("Filter mode changed")
}

func (l *Loop) exitMode(prev, next Mode) {
	pc := l.pc
	if prev == ModeOldFilm && pc.renderer != nil {
		if err := pc.renderer.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "exitMode",
				"error":    err.Error(),
			}).Warn("Failed to close renderer")
		}
		pc.renderer = nil
	}
	if prev == ModeScreenBackground && next != ModeScreenBackground && pc.Share != nil {
		pc.Share.Release()
	}
}

func (l *Loop) enterMode(ctx context.Context, m Mode) {
	pc := l.pc
	switch {
	case m == ModeOldFilm:
		if pc.NewRenderer != nil {
			pc.renderer = pc.NewRenderer()
		}
	case m.Kind().Segmented():
		if pc.Segmenter != nil && pc.Segmenter.Retry() {
			pc.initFailureLogged = false
			logrus.WithFields(logrus.Fields{
				"function": "enterMode",
				"mode":     m.String(),
			}).Info("Segmentation mode reselected, retrying engine load")
		}
		if m == ModeFireworksBackground {
			pc.background(m)
		}
		if m == ModeScreenBackground && pc.Share != nil {
			pc.Share.Ensure(ctx)
		}
	}
}

// shutdown releases mode resources when the loop stops.
func (l *Loop) shutdown() {
	l.exitMode(l.pc.mode, ModeNone)
	for m, src := range l.pc.backgrounds {
		var target any = src
		switch s := src.(type) {
		case *composite.Generated:
			target = s.Filter
		case *composite.FilterOnBlank:
			target = s.Filter
		}
		if c, ok := target.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Loop.shutdown",
					"mode":     m.String(),
					"error":    err.Error(),
				}).Warn("Failed to close background source")
			}
		}
	}

	m := l.Metrics()
	logrus.WithFields(logrus.Fields{
		"function":            "Loop.shutdown",
		"ticks":               m.Ticks,
		"published":           m.Published,
		"stale_results":       m.StaleResults,
		"filter_faults":       m.FilterFaults,
		"composite_fallbacks": m.CompositeFallbacks,
	}).Info("Render loop stopped")
}

func (l *Loop) publish(buf *frame.Buffer) {
	l.pc.Canvas.Publish(buf)
	l.pc.Stats.published.Add(1)
	l.trace("Frame published", buf)
}

// timestamp returns the frame time relative to the loop start.
func (l *Loop) timestamp(buf *frame.Buffer) time.Duration {
	if !buf.Timestamp.IsZero() && !buf.Timestamp.Before(l.pc.started) {
		return buf.Timestamp.Sub(l.pc.started)
	}
	return l.time.Now().Sub(l.pc.started)
}

func (l *Loop) trace(msg string, buf *frame.Buffer) {
	if !l.pc.Stats.IsDetailedLoggingEnabled() {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "Loop",
		"mode":     l.pc.mode.String(),
		"sequence": buf.Sequence,
	}).Trace(msg)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
