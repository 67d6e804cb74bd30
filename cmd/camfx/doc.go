// Command camfx runs the webcam filter pipeline against a synthetic camera
// and serves the processed stream on a local preview server.
//
// The filter can be changed at runtime through the preview websocket:
//
//	{"type":"set_filter","filter":"matrix-background"}
//
// Usage:
//
//	camfx -config camfx.yaml -filter vcr -log-level debug
package main
