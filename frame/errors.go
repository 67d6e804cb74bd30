package frame

import "errors"

var (
	// ErrNilBuffer indicates a nil frame buffer was passed to an operation.
	ErrNilBuffer = errors.New("frame buffer cannot be nil")

	// ErrSizeMismatch indicates two buffers with different dimensions.
	ErrSizeMismatch = errors.New("frame dimensions do not match")

	// ErrMaskMismatch indicates a mask whose size does not match its frame.
	ErrMaskMismatch = errors.New("mask does not match frame")
)
