package filter

import (
	"fmt"
	"math/rand/v2"

	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// Filter is a pixel transform applied to one frame.
type Filter interface {
	// Apply rewrites buf in place.
	Apply(buf *frame.Buffer) error
	// Name returns the filter name for identification.
	Name() string
}

// SafeApply runs f on buf and guarantees buf is left unmodified when f fails.
//
// Errors, panics and geometry changes are all reported as errors; the
// caller's frame is restored from a snapshot taken before the call.
func SafeApply(f Filter, buf *frame.Buffer) (err error) {
	if err := buf.Validate(); err != nil {
		return err
	}

	snapshot := buf.Clone()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrFilterPanic, f.Name(), r)
		}
		if err == nil && (buf.Validate() != nil || !buf.SameSize(snapshot)) {
			err = fmt.Errorf("%w: %s", ErrGeometryChanged, f.Name())
		}
		if err != nil {
			*buf = *snapshot
			logrus.WithFields(logrus.Fields{
				"function": "SafeApply",
				"filter":   f.Name(),
				"sequence": buf.Sequence,
				"error":    err.Error(),
			}).Warn("Filter fault, frame left unmodified")
		}
	}()

	return f.Apply(buf)
}

// Chain manages multiple filters applied in sequence.
//
// Filters run against a working copy which is committed only if every filter
// succeeds.
type Chain struct {
	filters []Filter
}

// NewChain creates a new, empty filter chain.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

// Add appends a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Apply processes buf through all filters in the chain.
func (c *Chain) Apply(buf *frame.Buffer) error {
	if buf == nil {
		return frame.ErrNilBuffer
	}
	if len(c.filters) == 0 {
		return nil
	}

	work := buf.Clone()
	for i, f := range c.filters {
		if err := f.Apply(work); err != nil {
			return fmt.Errorf("filter %d (%s) failed: %w", i, f.Name(), err)
		}
	}
	return buf.CopyFrom(work)
}

// Name returns the names of the chained filters joined with "+".
func (c *Chain) Name() string {
	name := ""
	for i, f := range c.filters {
		if i > 0 {
			name += "+"
		}
		name += f.Name()
	}
	if name == "" {
		return "chain(empty)"
	}
	return name
}

// clamp255 clamps v to [0, 255] and rounds to the nearest byte.
func clamp255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// newRand returns a generator seeded from the global source.
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// noise returns a symmetric perturbation in [-amplitude, amplitude).
func noise(rng *rand.Rand, amplitude float64) float64 {
	return (rng.Float64() - 0.5) * 2 * amplitude
}
