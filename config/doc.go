// Package config loads camfx settings.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then CAMFX_* environment variables. Environment values that fail to
// parse or fall outside their bounds are logged and ignored. The merged
// result is validated before use.
//
// # Environment
//
//   - CAMFX_CAPTURE_WIDTH, CAMFX_CAPTURE_HEIGHT: resolution hint in pixels
//   - CAMFX_FRAME_RATE: render ticks per second
//   - CAMFX_MODEL_PATH, CAMFX_DELEGATE: segmentation engine options
//   - CAMFX_FILTER: initial filter tag
//   - CAMFX_PREVIEW_ADDR: preview listen address
//   - CAMFX_LOG_LEVEL: logrus level name
package config
