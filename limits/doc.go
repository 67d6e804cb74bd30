// Package limits provides centralized frame size constants and validation functions
// for the camfx pipeline. Every component that allocates or accepts a pixel buffer
// checks it against these limits so that a malformed frame is rejected at the
// boundary instead of corrupting a filter pass.
//
// # Frame Size Hierarchy
//
//   - MinFrameDimension (1 pixel): a frame must contain at least one pixel.
//
//   - MaxFrameWidth x MaxFrameHeight (7680x4320): the largest frame accepted
//     anywhere in the pipeline (8K UHD). Camera drivers that report larger modes
//     are clamped by the capture resolution hint long before this.
//
//   - BytesPerPixel (4): buffers are RGBA, one byte per channel.
//
// # Validation Functions
//
//	if err := limits.ValidateDimensions(w, h); err != nil {
//	    // ErrInvalidDimensions
//	}
//
//	if err := limits.ValidateBufferSize(len(pix), w, h); err != nil {
//	    // ErrInvalidDimensions or ErrBufferSize
//	}
package limits
