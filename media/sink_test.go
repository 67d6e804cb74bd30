package media

import (
	"testing"
	"time"

	"github.com/opd-ai/camfx/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSinkLatest(t *testing.T) {
	s := NewDecodeSink()
	tr := NewVideoTrack("cam", 4)
	require.NoError(t, s.Attach(tr))
	assert.Nil(t, s.Latest())

	tr.Deliver(frame.New(4, 3))
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("sink never became ready")
	}
	w, h := s.Dimensions()
	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)

	tr.Deliver(frame.New(4, 3))
	require.Eventually(t, func() bool {
		l := s.Latest()
		return l != nil && l.Sequence == 2
	}, time.Second, time.Millisecond)
	assert.False(t, s.Latest().Timestamp.IsZero())
}

func TestDecodeSinkDropsInvalidFrames(t *testing.T) {
	s := NewDecodeSink()
	tr := NewVideoTrack("cam", 4)
	require.NoError(t, s.Attach(tr))

	tr.Deliver(&frame.Buffer{Width: 4, Height: 4, Pix: make([]byte, 3)})
	tr.Deliver(frame.New(2, 2))
	require.Eventually(t, func() bool { return s.Latest() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), s.Latest().Sequence)
	assert.Equal(t, 2, s.Latest().Width)
}

func TestDecodeSinkEndsWithTrack(t *testing.T) {
	s := NewDecodeSink()
	tr := NewVideoTrack("cam", 1)
	require.NoError(t, s.Attach(tr))
	tr.Stop()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("sink did not end")
	}
	assert.ErrorIs(t, s.Attach(NewVideoTrack("cam", 1)), ErrSinkEnded)
}

func TestDecodeSinkReplacesTrack(t *testing.T) {
	s := NewDecodeSink()
	first := NewVideoTrack("first", 1)
	second := NewVideoTrack("second", 1)
	require.NoError(t, s.Attach(first))
	require.NoError(t, s.Attach(second))

	first.Stop()
	second.Deliver(frame.New(3, 3))
	require.Eventually(t, func() bool { return s.Latest() != nil }, time.Second, time.Millisecond)

	select {
	case <-s.Done():
		t.Fatal("detached track ended the sink")
	default:
	}
}

func TestDecodeSinkAttachErrors(t *testing.T) {
	s := NewDecodeSink()
	assert.ErrorIs(t, s.Attach(nil), ErrNoVideo)
	assert.ErrorIs(t, s.Attach(NewAudioTrack("mic")), ErrNoVideo)

	stopped := NewVideoTrack("cam", 1)
	stopped.Stop()
	assert.ErrorIs(t, s.Attach(stopped), ErrTrackEnded)
}
