package screen

import "errors"

var (
	// ErrDenied indicates the user refused or cancelled the share request.
	ErrDenied = errors.New("screen share denied")

	// ErrUnavailable indicates no screen capture facility is reachable.
	ErrUnavailable = errors.New("screen share unavailable")

	// ErrStopped indicates the capture has been stopped.
	ErrStopped = errors.New("screen capture stopped")
)
