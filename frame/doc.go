// Package frame defines the pixel and mask containers that flow through the
// camfx pipeline.
//
// A Buffer is one decoded camera frame: width*height RGBA pixels, row-major,
// top-left origin. A Mask is the per-pixel foreground/background
// classification computed for exactly one Buffer; it carries the Sequence of
// that frame so that a mask is never composited onto a later frame.
//
//	buf := frame.New(1280, 720)
//	img := buf.Image() // zero-copy *image.RGBA view for x/image and gg
//
//	mask := frame.NewMask(1280, 720)
//	mask.Data[i] = frame.CategoryBackground
package frame
