package media

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/camfx/frame"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/opd-ai/camfx/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcquirer struct {
	mu      sync.Mutex
	calls   []Constraints
	err     error
	noVideo bool
	last    *Stream
}

func (f *fakeAcquirer) GetUserMedia(_ context.Context, c Constraints) (*Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Video != nil {
		v := *c.Video
		c.Video = &v
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	var tracks []*Track
	if c.WantsVideo() && !f.noVideo {
		tracks = append(tracks, NewVideoTrack("camera", 4))
	}
	if c.Audio {
		tracks = append(tracks, NewAudioTrack("mic"))
	}
	f.last = NewStream(tracks...)
	return f.last, nil
}

func (f *fakeAcquirer) constraints() []Constraints {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Constraints(nil), f.calls...)
}

func newTestInterceptor(t *testing.T, up Acquirer, pc *pipeline.Context) *Interceptor {
	t.Helper()
	i := NewInterceptor(up, pc, InterceptorOptions{
		Width:  1280,
		Height: 720,
		Loop:   pipeline.Options{FrameRate: 200},
	})
	t.Cleanup(func() { _ = i.Close() })
	return i
}

func TestAudioOnlyPassesThrough(t *testing.T) {
	up := &fakeAcquirer{}
	i := newTestInterceptor(t, up, nil)

	s, err := i.GetUserMedia(context.Background(), Constraints{Audio: true})
	require.NoError(t, err)
	assert.Same(t, up.last, s)
	assert.Nil(t, up.constraints()[0].Video)
}

func TestVideoRequestGetsResolutionHint(t *testing.T) {
	up := &fakeAcquirer{}
	i := newTestInterceptor(t, up, nil)

	req := &VideoConstraints{Width: 320, Height: 240}
	_, err := i.GetUserMedia(context.Background(), Constraints{Video: req})
	require.NoError(t, err)

	got := up.constraints()[0].Video
	require.NotNil(t, got)
	assert.Equal(t, 1280, got.Width)
	assert.Equal(t, 720, got.Height)
	assert.Equal(t, 320, req.Width, "caller constraints must not be modified")
}

func TestSubstitutedStreamCarriesCanvasAndAudio(t *testing.T) {
	up := &fakeAcquirer{}
	i := newTestInterceptor(t, up, nil)

	s, err := i.GetUserMedia(context.Background(), Constraints{Audio: true, Video: &VideoConstraints{}})
	require.NoError(t, err)
	require.NotSame(t, up.last, s)

	require.Len(t, s.VideoTracks(), 1)
	assert.Equal(t, "canvas", s.VideoTracks()[0].Label)
	assert.Equal(t, up.last.AudioTracks(), s.AudioTracks())
	assert.NotEqual(t, up.last.VideoTracks()[0].ID, s.VideoTracks()[0].ID)
}

func TestProcessedFramesReachCaller(t *testing.T) {
	up := &fakeAcquirer{}
	i := newTestInterceptor(t, up, nil)
	i.Loop().SetMode(pipeline.ModeInvert)

	s, err := i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}})
	require.NoError(t, err)

	cam := up.last.VideoTracks()[0]
	buf := frame.New(4, 4)
	buf.Fill(10, 20, 30, 255)
	cam.Deliver(buf)

	select {
	case out := <-s.VideoTracks()[0].Frames():
		assert.Equal(t, []byte{245, 235, 225, 255}, out.Pix[:4])
		assert.Equal(t, 4, out.Width)
	case <-time.After(2 * time.Second):
		t.Fatal("no processed frame")
	}
}

func TestAcquisitionErrorPropagates(t *testing.T) {
	boom := errors.New("permission denied")
	i := newTestInterceptor(t, &fakeAcquirer{err: boom}, nil)

	s, err := i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, s)
}

func TestSetupFailureReturnsOriginal(t *testing.T) {
	up := &fakeAcquirer{noVideo: true}
	i := newTestInterceptor(t, up, nil)

	s, err := i.GetUserMedia(context.Background(), Constraints{Audio: true, Video: &VideoConstraints{}})
	require.NoError(t, err)
	assert.Same(t, up.last, s)
}

func TestEndOfStreamStopsLoop(t *testing.T) {
	up := &fakeAcquirer{}
	i := newTestInterceptor(t, up, nil)

	_, err := i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}})
	require.NoError(t, err)
	up.last.VideoTracks()[0].Stop()

	select {
	case <-i.Loop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after end of stream")
	}
	assert.NoError(t, i.Err())
}

func TestCloseStopsEverything(t *testing.T) {
	up := &fakeAcquirer{}
	seg := segment.NewAdapter(segment.NewKeyLoader(color.RGBA{G: 177, B: 64, A: 255}, 60), segment.DefaultOptions())
	i := NewInterceptor(up, &pipeline.Context{Segmenter: seg}, InterceptorOptions{})

	s, err := i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}})
	require.NoError(t, err)
	require.NoError(t, i.Close())
	require.NoError(t, i.Close())

	assert.True(t, s.VideoTracks()[0].Stopped())
	assert.True(t, up.last.VideoTracks()[0].Stopped())

	_, err = i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPatternCameraWithKeySegmentation(t *testing.T) {
	cam := &PatternCamera{Width: 64, Height: 48, FrameRate: 100}
	key, err := segment.ParseKeyColor(DefaultKeyColor)
	require.NoError(t, err)
	seg := segment.NewAdapter(segment.NewKeyLoader(key, 60), segment.DefaultOptions())

	i := newTestInterceptor(t, cam, &pipeline.Context{Segmenter: seg})
	i.Loop().SetMode(pipeline.ModeRemoveBackground)

	s, err := i.GetUserMedia(context.Background(), Constraints{Video: &VideoConstraints{Width: 64, Height: 48}})
	require.NoError(t, err)
	out := s.VideoTracks()[0]

	// The top-left corner is backdrop once segmentation is running.
	require.Eventually(t, func() bool {
		select {
		case buf := <-out.Frames():
			return buf.Pix[0] == 0 && buf.Pix[1] == 0 && buf.Pix[2] == 0 && buf.Pix[3] == 255
		default:
			return false
		}
	}, 3*time.Second, 5*time.Millisecond)
}
