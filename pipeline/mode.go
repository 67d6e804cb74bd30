package pipeline

import "fmt"

// Kind groups modes that share a processing path.
type Kind int

const (
	// KindTonePass is a single color transform.
	KindTonePass Kind = iota
	// KindStylizedDirect is a full-frame pixel filter.
	KindStylizedDirect
	// KindSegmentedPlain replaces the background with black.
	KindSegmentedPlain
	// KindSegmentedReplaced replaces the background with a generated or
	// captured image.
	KindSegmentedReplaced
	// KindGPUComposited renders through a sprite.Renderer.
	KindGPUComposited
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTonePass:
		return "tone-pass"
	case KindStylizedDirect:
		return "stylized-direct"
	case KindSegmentedPlain:
		return "segmented-plain"
	case KindSegmentedReplaced:
		return "segmented-replaced"
	case KindGPUComposited:
		return "gpu-composited"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Segmented reports whether the kind needs the segmentation engine.
func (k Kind) Segmented() bool {
	return k == KindSegmentedPlain || k == KindSegmentedReplaced
}

// Mode is the active filter selection.
type Mode int

// The zero Mode is ModeNone.
const (
	ModeNone Mode = iota
	ModeGrayscale
	ModeSepia
	ModeInvert
	ModeHueRotate
	ModeCamcorder
	ModeVCR
	ModeRetroConsole
	ModeRemoveBackground
	ModeMatrixBackground
	ModeFireworksBackground
	ModeScreenBackground
	ModeOldFilm

	modeCount
)

var modeTags = [modeCount]string{
	ModeNone:                "none",
	ModeGrayscale:           "grayscale",
	ModeSepia:               "sepia",
	ModeInvert:              "invert",
	ModeHueRotate:           "hue-rotate",
	ModeCamcorder:           "camcorder",
	ModeVCR:                 "vcr",
	ModeRetroConsole:        "gameboycolor",
	ModeRemoveBackground:    "remove-background",
	ModeMatrixBackground:    "matrix-background",
	ModeFireworksBackground: "fireworks-background",
	ModeScreenBackground:    "screen-background",
	ModeOldFilm:             "old-film",
}

var modeKinds = [modeCount]Kind{
	ModeNone:                KindTonePass,
	ModeGrayscale:           KindTonePass,
	ModeSepia:               KindTonePass,
	ModeInvert:              KindTonePass,
	ModeHueRotate:           KindTonePass,
	ModeCamcorder:           KindStylizedDirect,
	ModeVCR:                 KindStylizedDirect,
	ModeRetroConsole:        KindStylizedDirect,
	ModeRemoveBackground:    KindSegmentedPlain,
	ModeMatrixBackground:    KindSegmentedReplaced,
	ModeFireworksBackground: KindSegmentedReplaced,
	ModeScreenBackground:    KindSegmentedReplaced,
	ModeOldFilm:             KindGPUComposited,
}

// ParseMode maps a filter tag to its Mode.
func ParseMode(tag string) (Mode, error) {
	for m, t := range modeTags {
		if t == tag {
			return Mode(m), nil
		}
	}
	return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, tag)
}

// Modes returns every mode in declaration order.
func Modes() []Mode {
	out := make([]Mode, modeCount)
	for i := range out {
		out[i] = Mode(i)
	}
	return out
}

// Valid reports whether m is a declared mode.
func (m Mode) Valid() bool {
	return m >= 0 && m < modeCount
}

// String returns the filter tag.
func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeTags[m]
}

// Kind returns the processing path of m.
func (m Mode) Kind() Kind {
	if !m.Valid() {
		return KindTonePass
	}
	return modeKinds[m]
}
