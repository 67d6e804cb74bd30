// Package media is the stream substitution boundary.
//
// An Interceptor sits in front of a real camera Acquirer. Requests that ask
// for video are forwarded with a resolution hint, the real video track is
// attached to a DecodeSink that feeds the render loop, and the caller gets
// back a stream whose video track is captured from the output Canvas. Audio
// tracks from the real stream are passed through untouched.
//
//	icpt := media.NewInterceptor(camera, pc, media.InterceptorOptions{Width: 1280, Height: 720})
//	stream, err := icpt.GetUserMedia(ctx, media.Constraints{Audio: true, Video: &media.VideoConstraints{}})
//	if err != nil {
//		return err
//	}
//	defer icpt.Close()
//
// Requests without video never touch the pipeline.
package media
