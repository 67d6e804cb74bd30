// Package segment adapts an external person-segmentation model to the
// render loop.
//
// The model is opaque: it is reached through the Engine interface and built
// by a Loader. Adapter guarantees a single lazy initialization and at most
// one classification in flight, and never blocks the caller. Results are
// delivered on a channel so the render loop can keep ticking while the
// model works.
//
// KeyEngine is a deterministic chroma-key engine used where no real model is
// available.
package segment
