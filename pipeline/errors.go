package pipeline

import "errors"

var (
	// ErrUnknownMode indicates a filter tag that names no mode.
	ErrUnknownMode = errors.New("unknown filter mode")

	// ErrAlreadyRunning indicates Run was called on a running loop.
	ErrAlreadyRunning = errors.New("render loop already running")

	// ErrNoSink indicates the context has no decode sink or canvas.
	ErrNoSink = errors.New("pipeline context missing sink or canvas")
)
