package segment

import "errors"

var (
	// ErrNotReady indicates the engine has not finished initializing.
	ErrNotReady = errors.New("segmentation engine not ready")

	// ErrBusy indicates a classification is already in flight.
	ErrBusy = errors.New("segmentation request already in flight")

	// ErrInitFailed indicates the engine loader failed.
	ErrInitFailed = errors.New("segmentation engine initialization failed")

	// ErrMaskSize indicates the engine returned a mask that does not cover the frame.
	ErrMaskSize = errors.New("segmentation mask does not match frame")

	// ErrClosed indicates the adapter has been closed.
	ErrClosed = errors.New("segmentation adapter closed")

	// ErrInvalidKeyColor indicates a key color string could not be parsed.
	ErrInvalidKeyColor = errors.New("invalid key color")
)
