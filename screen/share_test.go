package screen

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/camfx/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	latest  *frame.Buffer
	stopped atomic.Bool
}

func (f *fakeCapture) Latest() *frame.Buffer { return f.latest }
func (f *fakeCapture) Stop() error {
	f.stopped.Store(true)
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	gate    chan struct{}
	err     error
	capture *fakeCapture
}

func (p *fakeProvider) Start(ctx context.Context) (Capture, error) {
	p.mu.Lock()
	p.calls++
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.capture, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func solid(w, h int, v byte) *frame.Buffer {
	buf := frame.New(w, h)
	buf.Fill(v, v, v, 255)
	return buf
}

func waitState(t *testing.T, s *Share, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, time.Millisecond)
}

func TestShareEnsureIsOneShot(t *testing.T) {
	p := &fakeProvider{gate: make(chan struct{}), capture: &fakeCapture{latest: solid(4, 4, 9)}}
	s := NewShare(p)

	for i := 0; i < 5; i++ {
		assert.Equal(t, StatePending, s.Ensure(context.Background()))
	}
	assert.Nil(t, s.Snapshot(4, 4), "no frame before consent")

	close(p.gate)
	waitState(t, s, StateActive)
	assert.Equal(t, StateActive, s.Ensure(context.Background()))
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 1, s.Starts())
}

func TestShareSnapshot(t *testing.T) {
	capture := &fakeCapture{latest: solid(8, 4, 200)}
	s := NewShare(&fakeProvider{capture: capture})
	s.Ensure(context.Background())
	waitState(t, s, StateActive)

	t.Run("same size copies", func(t *testing.T) {
		shot := s.Snapshot(8, 4)
		require.NotNil(t, shot)
		assert.Equal(t, capture.latest.Pix, shot.Pix)
		assert.NotSame(t, capture.latest, shot)
	})

	t.Run("scaled", func(t *testing.T) {
		shot := s.Snapshot(16, 12)
		require.NotNil(t, shot)
		require.NoError(t, shot.Validate())
		assert.Equal(t, 16, shot.Width)
		for i := 0; i < len(shot.Pix); i += 4 {
			assert.InDelta(t, 200, int(shot.Pix[i]), 1)
			assert.InDelta(t, 200, int(shot.Pix[i+2]), 1)
			assert.Equal(t, uint8(255), shot.Pix[i+3])
		}
	})

	t.Run("no frame yet", func(t *testing.T) {
		saved := capture.latest
		capture.latest = nil
		t.Cleanup(func() { capture.latest = saved })
		assert.Nil(t, s.Snapshot(8, 4))
	})
}

func TestShareDenialIsRemembered(t *testing.T) {
	p := &fakeProvider{err: ErrDenied}
	s := NewShare(p)

	s.Ensure(context.Background())
	waitState(t, s, StateDenied)
	assert.ErrorIs(t, s.Err(), ErrDenied)
	assert.Nil(t, s.Snapshot(4, 4))

	assert.Equal(t, StateDenied, s.Ensure(context.Background()))
	assert.Equal(t, 1, p.Calls())

	s.Release()
	assert.Equal(t, StateIdle, s.State())
	assert.NoError(t, s.Err())
	s.Ensure(context.Background())
	require.Eventually(t, func() bool { return p.Calls() == 2 }, time.Second, time.Millisecond)
}

func TestShareNilCaptureIsUnavailable(t *testing.T) {
	s := NewShare(&fakeProvider{})
	s.Ensure(context.Background())
	waitState(t, s, StateDenied)
	assert.ErrorIs(t, s.Err(), ErrUnavailable)
}

func TestShareReleaseStopsCapture(t *testing.T) {
	capture := &fakeCapture{latest: solid(2, 2, 1)}
	s := NewShare(&fakeProvider{capture: capture})
	s.Ensure(context.Background())
	waitState(t, s, StateActive)

	s.Release()
	assert.True(t, capture.stopped.Load())
	assert.Nil(t, s.Snapshot(2, 2))
	s.Release()
}

func TestShareReleaseWhilePending(t *testing.T) {
	capture := &fakeCapture{latest: solid(2, 2, 1)}
	p := &fakeProvider{gate: make(chan struct{}), capture: capture}
	s := NewShare(p)
	s.Ensure(context.Background())

	s.Release()
	close(p.gate)

	require.Eventually(t, capture.stopped.Load, time.Second, time.Millisecond)
	assert.Equal(t, StateIdle, s.State())
}

func TestPatternProvider(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	p := NewPatternProvider(64, 48)
	p.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	c, err := p.Start(context.Background())
	require.NoError(t, err)

	a := c.Latest()
	b := c.Latest()
	require.NotNil(t, a)
	require.NoError(t, a.Validate())
	assert.Equal(t, 64, a.Width)
	assert.Equal(t, uint64(1), a.Sequence)
	assert.Equal(t, uint64(2), b.Sequence)
	assert.NotEqual(t, a.Pix, b.Pix, "windows drift over time")
	for i := 3; i < len(a.Pix); i += 4 {
		require.Equal(t, uint8(255), a.Pix[i])
	}

	require.NoError(t, c.Stop())
	assert.Nil(t, c.Latest())
	assert.ErrorIs(t, c.Stop(), ErrStopped)
}

func TestPatternProviderDeny(t *testing.T) {
	p := NewPatternProvider(8, 8)
	p.Deny = true
	_, err := p.Start(context.Background())
	assert.ErrorIs(t, err, ErrDenied)

	_, err = NewPatternProvider(0, 8).Start(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPatternProviderDelayHonorsContext(t *testing.T) {
	p := NewPatternProvider(8, 8)
	p.Delay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Start(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
