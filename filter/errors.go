package filter

import "errors"

var (
	// ErrFilterPanic indicates a filter panicked and the frame was restored.
	ErrFilterPanic = errors.New("filter panicked")

	// ErrGeometryChanged indicates a filter altered the frame dimensions or
	// buffer length.
	ErrGeometryChanged = errors.New("filter changed frame geometry")
)
