// Package layers owns the raster layer assets, the static compositing
// base, and the per-layer blend-mode arithmetic that the compositor
// builds on top of.
package layers

import "image"

// Kind is the semantic role of a layer within the manifest.
type Kind string

const (
	KindStatic      Kind = "static"
	KindMouth       Kind = "mouth"
	KindBlink       Kind = "blink"
	KindExprEye     Kind = "expression-eye"
	KindExprBrow    Kind = "expression-brow"
	KindExprCover   Kind = "expression-cover"
	KindNose        Kind = "nose"
	KindEmission    Kind = "emission"
	KindEmissionFg  Kind = "emission-fg"
	KindLightsOn    Kind = "lights-on"
	KindMask        Kind = "mask"
	KindTVReflect   Kind = "tv-reflection"
)

// Character identifies which half of the scene a layer belongs to.
type Character string

const (
	CharLeft  Character = "left"
	CharRight Character = "right"
	CharNone  Character = "none"
)

// Phoneme is a visual mouth-shape category, A through H, with X for
// unknown inputs that always map back to A.
type Phoneme string

const (
	PhonemeA       Phoneme = "A"
	PhonemeB       Phoneme = "B"
	PhonemeC       Phoneme = "C"
	PhonemeD       Phoneme = "D"
	PhonemeE       Phoneme = "E"
	PhonemeF       Phoneme = "F"
	PhonemeG       Phoneme = "G"
	PhonemeH       Phoneme = "H"
	PhonemeNone    Phoneme = "none"
	PhonemeUnknown Phoneme = "X"
)

// NormalizePhoneme maps unknown codes to the closed/rest phoneme.
func NormalizePhoneme(p Phoneme) Phoneme {
	if p == PhonemeUnknown || p == "" {
		return PhonemeA
	}
	return p
}

// Rect is an integer bounding box in output-resolution pixels.
type Rect struct {
	X, Y, W, H int
}

// ToImageRect converts to the stdlib image.Rectangle equivalent.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Layer is one entry of the manifest plus its derived, loaded buffer.
type Layer struct {
	ID        string
	Path      string
	Type      Kind
	Character Character
	Phoneme   Phoneme
	X, Y      int
	Width     int
	Height    int
	ZIndex    int
	Visible   bool

	// Buffer is the scaled RGBA buffer at output resolution.
	Buffer *image.RGBA

	// ContentBounds and CroppedBuffer are only populated for brow
	// layers: the tight, 4px-padded bounding box of non-transparent
	// pixels and a buffer cropped to it, used for rotation.
	ContentBounds Rect
	CroppedBuffer *image.RGBA
}

// Manifest is the ordered list of layers plus native canvas dimensions,
// read-only after load.
type Manifest struct {
	Width  int
	Height int
	Layers []ManifestLayer
}

// ManifestLayer is the raw, on-disk shape of one manifest entry.
type ManifestLayer struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	Character string `json:"character,omitempty"`
	Phoneme   string `json:"phoneme,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ZIndex    int    `json:"zIndex"`
	Visible   *bool  `json:"visible,omitempty"`
}
