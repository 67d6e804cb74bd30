// Package preview serves the processed stream and the filter selection over
// HTTP.
//
// Endpoints:
//
//	/ws       websocket: binary CBOR frame messages out, JSON control in
//	/healthz  liveness probe
//	/status   JSON render loop metrics
//
// Control messages are JSON text frames:
//
//	{"type":"set_filter","filter":"vcr"}
//	{"type":"get_filter"}
//
// Both are answered with {"type":"filter","filter":"<tag>"}, or
// {"type":"error","error":"..."} for unknown tags.
package preview
