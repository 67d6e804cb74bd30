package segment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/camfx/frame"
	"github.com/sirupsen/logrus"
)

// State is the initialization state of an Adapter.
type State int

const (
	// StateIdle means no load has been attempted.
	StateIdle State = iota
	// StateLoading means the loader is running.
	StateLoading
	// StateReady means the engine accepts requests.
	StateReady
	// StateFailed means the loader returned an error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of one classification.
type Result struct {
	// Frame is the buffer that was classified.
	Frame *frame.Buffer
	// Mask is nil when Err is set.
	Mask *frame.Mask
	Err  error
	// Timestamp is the value handed to the engine.
	Timestamp time.Duration
}

// Adapter wraps an Engine with lazy initialization and request
// serialization. It is safe for concurrent use.
type Adapter struct {
	loader Loader
	opts   Options

	mu       sync.Mutex
	state    State
	engine   Engine
	initErr  error
	inFlight bool
	flight   chan struct{}
	lastTS   time.Duration
	issued   bool
	loads    int
	closed   bool
}

// NewAdapter creates an adapter that will build its engine with loader.
func NewAdapter(loader Loader, opts Options) *Adapter {
	return &Adapter{loader: loader, opts: opts}
}

// Ensure starts loading the engine if no load has been attempted and
// returns the current state. It never blocks; repeated calls while loading
// do nothing.
func (a *Adapter) Ensure(ctx context.Context) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateIdle || a.closed {
		return a.state
	}

	a.state = StateLoading
	a.loads++

	logrus.WithFields(logrus.Fields{
		"function":   "Adapter.Ensure",
		"model_path": a.opts.ModelPath,
		"delegate":   a.opts.Delegate,
		"attempt":    a.loads,
	}).Info("Loading segmentation engine")

	go a.load(ctx)
	return StateLoading
}

func (a *Adapter) load(ctx context.Context) {
	engine, err := a.safeLoad(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		if engine != nil {
			_ = engine.Close()
		}
		return
	}

	if err != nil {
		a.state = StateFailed
		a.initErr = fmt.Errorf("%w: %v", ErrInitFailed, err)
		logrus.WithFields(logrus.Fields{
			"function":   "Adapter.load",
			"model_path": a.opts.ModelPath,
			"error":      err.Error(),
		}).Warn("Segmentation engine failed to load, segmentation modes pass through")
		return
	}

	a.engine = engine
	a.state = StateReady
	logrus.WithFields(logrus.Fields{
		"function": "Adapter.load",
	}).Info("Segmentation engine ready")
}

func (a *Adapter) safeLoad(ctx context.Context) (engine Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()
	engine, err = a.loader(ctx, a.opts)
	if err == nil && engine == nil {
		err = fmt.Errorf("loader returned no engine")
	}
	return engine, err
}

// State returns the current initialization state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the last initialization error, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initErr
}

// Loads returns how many times the loader has been started.
func (a *Adapter) Loads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads
}

// InFlight reports whether a classification is outstanding.
func (a *Adapter) InFlight() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// Retry re-arms a failed adapter so the next Ensure starts a new load.
// It reports whether the adapter was in the failed state.
func (a *Adapter) Retry() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateFailed {
		return false
	}
	a.state = StateIdle
	a.initErr = nil
	return true
}

// Classify submits buf to the engine and returns a channel that receives
// exactly one Result. buf must not be modified until the result arrives.
//
// Timestamps that do not increase are bumped past the previous one.
func (a *Adapter) Classify(ctx context.Context, buf *frame.Buffer, ts time.Duration) (<-chan Result, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	switch {
	case a.closed:
		a.mu.Unlock()
		return nil, ErrClosed
	case a.state != StateReady:
		a.mu.Unlock()
		return nil, ErrNotReady
	case a.inFlight:
		a.mu.Unlock()
		return nil, ErrBusy
	}
	if a.issued && ts <= a.lastTS {
		ts = a.lastTS + 1
	}
	a.lastTS, a.issued = ts, true
	a.inFlight = true
	flight := make(chan struct{})
	a.flight = flight
	engine := a.engine
	a.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer close(out)

		mask, err := a.segment(ctx, engine, buf, ts)

		a.mu.Lock()
		a.inFlight = false
		a.flight = nil
		a.mu.Unlock()
		close(flight)

		out <- Result{Frame: buf, Mask: mask, Err: err, Timestamp: ts}
	}()
	return out, nil
}

func (a *Adapter) segment(ctx context.Context, engine Engine, buf *frame.Buffer, ts time.Duration) (mask *frame.Mask, err error) {
	defer func() {
		if r := recover(); r != nil {
			mask, err = nil, fmt.Errorf("engine panicked: %v", r)
		}
	}()

	mask, err = engine.Segment(ctx, buf, ts)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return nil, fmt.Errorf("%w: no mask", ErrMaskSize)
	}
	if err := mask.Matches(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMaskSize, err)
	}
	mask.Sequence = buf.Sequence
	return mask, nil
}

// Close releases the engine once any outstanding classification has
// returned. A load still running is discarded when it completes.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	flight := a.flight
	a.mu.Unlock()

	if flight != nil {
		<-flight
	}

	a.mu.Lock()
	engine := a.engine
	a.engine = nil
	a.mu.Unlock()

	if engine == nil {
		return nil
	}
	return engine.Close()
}
