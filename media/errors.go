package media

import "errors"

var (
	// ErrNoVideo is returned when a stream carries no video track.
	ErrNoVideo = errors.New("stream has no video track")
	// ErrSinkEnded is returned when attaching to a sink whose stream has ended.
	ErrSinkEnded = errors.New("decode sink has ended")
	// ErrTrackEnded is returned when a track has already been stopped.
	ErrTrackEnded = errors.New("track has ended")
	// ErrClosed is returned by a closed interceptor.
	ErrClosed = errors.New("interceptor closed")
)
