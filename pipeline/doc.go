// Package pipeline drives frames from the decode sink through the selected
// filter path to the output canvas.
//
// # Architecture
//
// A Loop runs on a single goroutine and advances one frame per tick. Every
// tick it applies any pending mode change, takes the latest decoded frame
// and dispatches on the mode's Kind:
//
//   - KindTonePass and KindStylizedDirect run a filter synchronously and
//     publish.
//   - KindGPUComposited hands the frame to a sprite.Renderer that exists
//     only while the mode is active.
//   - KindSegmentedPlain and KindSegmentedReplaced make sure the
//     segmentation engine is loaded, then submit the frame for
//     classification. The result is composited and published when it
//     arrives, provided the mode has not changed in the meantime.
//
// Only one classification is ever outstanding. Ticks that find one in
// flight are skipped, so the tick rate provides natural backpressure.
//
// All mutable pipeline state lives in Context and is touched only by the
// loop goroutine. SetMode is safe to call from any goroutine and takes
// effect at the start of the next tick.
//
// # Example
//
//	pc := &pipeline.Context{
//	    Sink:       sink,
//	    Canvas:     canvas,
//	    Segmenter:  segment.NewAdapter(loader, segment.DefaultOptions()),
//	    Compositor: composite.New(),
//	}
//	loop := pipeline.NewLoop(pc, pipeline.Options{FrameRate: 60})
//	loop.SetMode(pipeline.ModeMatrixBackground)
//	go loop.Run(ctx)
package pipeline
