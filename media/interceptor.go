package media

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/camfx/pipeline"
	"github.com/sirupsen/logrus"
)

// InterceptorOptions configures an Interceptor.
type InterceptorOptions struct {
	// Width and Height are forced onto every video request. Zero leaves the
	// request's own values.
	Width  int
	Height int
	// Loop configures the render loop.
	Loop pipeline.Options
}

// Interceptor is an Acquirer that substitutes the processed canvas stream
// for the camera's video.
type Interceptor struct {
	upstream Acquirer
	opts     InterceptorOptions

	pc     *pipeline.Context
	sink   *DecodeSink
	canvas *Canvas
	loop   *pipeline.Loop

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	closed   bool
	acquired []*Stream
	runErr   error
}

// NewInterceptor wraps upstream. pc carries the optional collaborators
// (segmenter, screen share, renderer factory); its sink and canvas are
// owned by the interceptor.
func NewInterceptor(upstream Acquirer, pc *pipeline.Context, opts InterceptorOptions) *Interceptor {
	if pc == nil {
		pc = &pipeline.Context{}
	}
	sink := NewDecodeSink()
	canvas := NewCanvas()
	pc.Sink = sink
	pc.Canvas = canvas

	ctx, cancel := context.WithCancel(context.Background())
	return &Interceptor{
		upstream: upstream,
		opts:     opts,
		pc:       pc,
		sink:     sink,
		canvas:   canvas,
		loop:     pipeline.NewLoop(pc, opts.Loop),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Loop returns the render loop, for mode changes and stats.
func (i *Interceptor) Loop() *pipeline.Loop {
	return i.loop
}

// Canvas returns the output canvas.
func (i *Interceptor) Canvas() *Canvas {
	return i.canvas
}

// Sink returns the decode sink.
func (i *Interceptor) Sink() *DecodeSink {
	return i.sink
}

// GetUserMedia acquires a stream from upstream. Video requests come back with
// the processed canvas track in place of the camera's video track.
func (i *Interceptor) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if !c.WantsVideo() {
		return i.upstream.GetUserMedia(ctx, c)
	}

	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	hinted := c
	video := *c.Video
	if i.opts.Width > 0 && i.opts.Height > 0 {
		video.Width, video.Height = i.opts.Width, i.opts.Height
	}
	hinted.Video = &video

	original, err := i.upstream.GetUserMedia(ctx, hinted)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Interceptor.GetUserMedia",
			"error":    err.Error(),
		}).Error("Camera acquisition failed")
		return nil, err
	}

	stream, err := i.substitute(original)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Interceptor.GetUserMedia",
			"stream_id": original.ID,
			"error":     err.Error(),
		}).Warn("Could not set up processing, returning the camera stream")
		return original, nil
	}
	return stream, nil
}

func (i *Interceptor) substitute(original *Stream) (*Stream, error) {
	videos := original.VideoTracks()
	if len(videos) == 0 {
		return nil, ErrNoVideo
	}
	if err := i.sink.Attach(videos[0]); err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.acquired = append(i.acquired, original)
	if !i.started {
		i.started = true
		go i.run()
	}
	i.mu.Unlock()

	captured := i.canvas.CaptureStream().VideoTracks()[0]
	out := NewStream(append([]*Track{captured}, original.AudioTracks()...)...)

	logrus.WithFields(logrus.Fields{
		"function":     "Interceptor.substitute",
		"original_id":  original.ID,
		"stream_id":    out.ID,
		"audio_tracks": len(original.AudioTracks()),
	}).Info("Camera stream substituted")
	return out, nil
}

func (i *Interceptor) run() {
	err := i.loop.Run(i.ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	i.mu.Lock()
	i.runErr = err
	i.mu.Unlock()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Interceptor.run",
			"error":    err.Error(),
		}).Error("Render loop exited")
	}
}

// Err returns the error the render loop exited with, if any.
func (i *Interceptor) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.runErr
}

// Close stops the render loop, the camera tracks it consumes and every
// captured stream. Collaborators in the pipeline context are closed too.
func (i *Interceptor) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	started := i.started
	acquired := i.acquired
	i.acquired = nil
	i.mu.Unlock()

	i.cancel()
	if started {
		<-i.loop.Done()
	}
	i.sink.Close()
	i.canvas.Close()
	for _, s := range acquired {
		for _, t := range s.VideoTracks() {
			t.Stop()
		}
	}

	var errs []error
	if i.pc.Segmenter != nil {
		errs = append(errs, i.pc.Segmenter.Close())
	}
	if i.pc.Share != nil {
		i.pc.Share.Release()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Interceptor.Close",
	}).Info("Interceptor closed")
	return errors.Join(errs...)
}
