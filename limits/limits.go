// Package limits provides centralized frame size limits for the camfx pipeline.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MinFrameDimension is the smallest accepted width or height.
	MinFrameDimension = 1

	// MaxFrameWidth is the widest frame any stage accepts (8K UHD).
	MaxFrameWidth = 7680

	// MaxFrameHeight is the tallest frame any stage accepts (8K UHD).
	MaxFrameHeight = 4320

	// BytesPerPixel is the size of one RGBA pixel.
	BytesPerPixel = 4
)

var (
	// ErrInvalidDimensions indicates a width or height outside the accepted range.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")

	// ErrBufferSize indicates a pixel buffer whose length is not width*height*4.
	ErrBufferSize = errors.New("pixel buffer size mismatch")
)

// ValidateDimensions checks that width and height are within
// [MinFrameDimension, MaxFrameWidth] and [MinFrameDimension, MaxFrameHeight].
func ValidateDimensions(width, height int) error {
	if width < MinFrameDimension || height < MinFrameDimension {
		return fmt.Errorf("%w: %dx%d below minimum %d", ErrInvalidDimensions, width, height, MinFrameDimension)
	}
	if width > MaxFrameWidth || height > MaxFrameHeight {
		return fmt.Errorf("%w: %dx%d exceeds limit %dx%d", ErrInvalidDimensions, width, height, MaxFrameWidth, MaxFrameHeight)
	}
	return nil
}

// BufferSize returns the exact RGBA buffer length for the given dimensions.
func BufferSize(width, height int) int {
	return width * height * BytesPerPixel
}

// ValidateBufferSize validates a buffer length against the dimensions it claims to hold.
// Returns an error with context including the actual and expected sizes.
func ValidateBufferSize(length, width, height int) error {
	if err := ValidateDimensions(width, height); err != nil {
		return err
	}
	if expected := BufferSize(width, height); length != expected {
		return fmt.Errorf("%w: got %d bytes, expected %d for %dx%d", ErrBufferSize, length, expected, width, height)
	}
	return nil
}
