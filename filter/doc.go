// Package filter implements the per-frame pixel transforms of the camfx
// pipeline.
//
// Every transform implements Filter and rewrites a frame.Buffer in place. All
// filters except Fireworks are stateless per call: animated effects read
// Buffer.Sequence and Buffer.Timestamp instead of keeping counters.
//
// # Filter Families
//
//   - Tone: single-pass color matrices equivalent to the CSS grayscale, sepia,
//     invert and hue-rotate filter functions.
//   - Camcorder, VCR: color matrix, per-channel noise, scanlines, vignette or
//     chroma distortion, and an on-screen clock drawn by Overlay.
//   - RetroConsole: downsample, Bayer-dithered four-color palette, nearest
//     neighbor upscale.
//   - Matrix: per-cell brightness rendered as glyphs from a brightness ramp.
//   - Fireworks: particle simulation rendered with gogpu/gg. The Simulation
//     persists across calls and belongs to the render loop that created it.
//
// # Fault Containment
//
// SafeApply runs a filter against a snapshot of the frame. If the filter
// returns an error, panics, or changes the frame geometry, the snapshot is
// restored so the caller always ends the tick with a valid, unmodified frame:
//
//	if err := filter.SafeApply(f, buf); err != nil {
//	    // log and publish buf as-is
//	}
package filter
