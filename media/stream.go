package media

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/camfx/frame"
)

// TrackKind identifies the media carried by a track.
type TrackKind string

const (
	// KindVideo tracks deliver frames.
	KindVideo TrackKind = "video"
	// KindAudio tracks are opaque to this package.
	KindAudio TrackKind = "audio"
)

// DefaultTrackBuffer is the number of frames a video track queues before it
// starts dropping the oldest.
const DefaultTrackBuffer = 2

// VideoConstraints is the video part of a capture request.
type VideoConstraints struct {
	Width  int
	Height int
}

// Constraints describes a capture request. A nil Video asks for no video.
type Constraints struct {
	Audio bool
	Video *VideoConstraints
}

// WantsVideo reports whether the request asks for video.
func (c Constraints) WantsVideo() bool {
	return c.Video != nil
}

// Acquirer hands out capture streams.
type Acquirer interface {
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}

// Track is one media track. Video tracks carry frames from a single
// producer to a single consumer; ownership of each delivered frame passes to
// the consumer.
type Track struct {
	ID    string
	Kind  TrackKind
	Label string

	frames chan *frame.Buffer
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	dropped uint64
	onStop  []func()
}

// NewVideoTrack creates a video track queueing up to buffer frames.
func NewVideoTrack(label string, buffer int) *Track {
	if buffer <= 0 {
		buffer = DefaultTrackBuffer
	}
	return &Track{
		ID:     uuid.NewString(),
		Kind:   KindVideo,
		Label:  label,
		frames: make(chan *frame.Buffer, buffer),
		done:   make(chan struct{}),
	}
}

// NewAudioTrack creates an audio track.
func NewAudioTrack(label string) *Track {
	return &Track{
		ID:    uuid.NewString(),
		Kind:  KindAudio,
		Label: label,
		done:  make(chan struct{}),
	}
}

// Frames returns the frame queue of a video track, or nil for audio.
func (t *Track) Frames() <-chan *frame.Buffer {
	return t.frames
}

// Done is closed when the track is stopped.
func (t *Track) Done() <-chan struct{} {
	return t.done
}

// Deliver queues buf, dropping the oldest queued frame when full. It reports
// false if the track is stopped or carries no video.
func (t *Track) Deliver(buf *frame.Buffer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.frames == nil {
		return false
	}
	for {
		select {
		case t.frames <- buf:
			return true
		default:
		}
		select {
		case <-t.frames:
			t.dropped++
		default:
		}
	}
}

// Dropped returns how many queued frames were discarded.
func (t *Track) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Stopped reports whether Stop has been called.
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// OnStop registers fn to run once when the track stops. It runs
// immediately if the track is already stopped.
func (t *Track) OnStop(fn func()) {
	t.mu.Lock()
	if !t.stopped {
		t.onStop = append(t.onStop, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Stop ends the track. Further calls do nothing.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	hooks := t.onStop
	t.onStop = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Stream groups tracks under one identifier.
type Stream struct {
	ID     string
	tracks []*Track
}

// NewStream creates a stream holding tracks in order. Nil tracks are skipped.
func NewStream(tracks ...*Track) *Stream {
	s := &Stream{ID: uuid.NewString()}
	for _, t := range tracks {
		if t != nil {
			s.tracks = append(s.tracks, t)
		}
	}
	return s
}

// Tracks returns every track.
func (s *Stream) Tracks() []*Track {
	return append([]*Track(nil), s.tracks...)
}

// VideoTracks returns the video tracks.
func (s *Stream) VideoTracks() []*Track {
	return s.byKind(KindVideo)
}

// AudioTracks returns the audio tracks.
func (s *Stream) AudioTracks() []*Track {
	return s.byKind(KindAudio)
}

func (s *Stream) byKind(k TrackKind) []*Track {
	var out []*Track
	for _, t := range s.tracks {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
