package segment

import (
	"context"
	"time"

	"github.com/opd-ai/camfx/frame"
)

// Engine classifies the pixels of one frame.
type Engine interface {
	// Segment returns a category mask for buf. ts is the frame timestamp
	// relative to the start of the session and increases strictly between
	// calls.
	Segment(ctx context.Context, buf *frame.Buffer, ts time.Duration) (*frame.Mask, error)
	// Close releases model resources.
	Close() error
}

// Options is the fixed engine configuration for a session.
type Options struct {
	ModelPath          string
	Delegate           string
	RunningMode        string
	OutputCategoryMask bool
}

// DefaultOptions returns the selfie segmenter configuration.
func DefaultOptions() Options {
	return Options{
		ModelPath:          "selfie_segmenter.tflite",
		Delegate:           "GPU",
		RunningMode:        "VIDEO",
		OutputCategoryMask: true,
	}
}

// Loader builds an Engine. It may take many frame intervals to return.
type Loader func(ctx context.Context, opts Options) (Engine, error)
