package layers

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

// DefaultOutputScale matches the teacher's asset pipeline: native
// layer art is authored at 3x output resolution.
const DefaultOutputScale = 1.0 / 3.0

// browContentPad is the padding, in output pixels, added around a
// brow layer's tight non-transparent bounding box.
const browContentPad = 4

// lightsOnAlphaFloor: pixels whose max RGB channel is at or below this
// value are masked fully transparent in the lights-on layer, leaving
// only the lit regions.
const lightsOnAlphaFloor = 55

// Store owns every loaded layer buffer for the process lifetime, the
// derived TV viewport, and the native/output dimensions.
type Store struct {
	Manifest     *Manifest
	Layers       map[string]*Layer
	Ordered      []*Layer
	OutputWidth  int
	OutputHeight int
	OutputScale  float64
	TVViewport   Rect
	TVReflection *Layer

	log zerolog.Logger
}

// Load reads the manifest at manifestPath, loads every referenced PNG
// from layersDir, scales it to output resolution, and classifies
// derived data (brow content bounds, TV viewport, lights-on masking).
func Load(manifestPath, layersDir string, outputScale float64, log zerolog.Logger) (*Store, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if outputScale <= 0 {
		outputScale = DefaultOutputScale
	}

	s := &Store{
		Manifest:     manifest,
		Layers:       make(map[string]*Layer, len(manifest.Layers)),
		OutputWidth:  roundScale(manifest.Width, outputScale),
		OutputHeight: roundScale(manifest.Height, outputScale),
		OutputScale:  outputScale,
		log:          log,
	}

	for _, ml := range manifest.Layers {
		layer, err := s.loadLayer(ml, layersDir)
		if err != nil {
			return nil, err
		}
		s.Layers[layer.ID] = layer
		s.Ordered = append(s.Ordered, layer)
	}

	for _, l := range s.Ordered {
		switch l.Type {
		case KindExprBrow:
			computeBrowBounds(l)
		case KindLightsOn:
			maskLightsOn(l)
		case KindMask:
			s.TVViewport = maskBoundingBox(l)
		case KindTVReflect:
			s.TVReflection = l
		}
	}

	s.log.Info().
		Int("layerCount", len(s.Ordered)).
		Int("outputWidth", s.OutputWidth).
		Int("outputHeight", s.OutputHeight).
		Msg("layer store loaded")

	return s, nil
}

func (s *Store) loadLayer(ml ManifestLayer, layersDir string) (*Layer, error) {
	p := filepath.FromSlash(ml.Path)
	fullPath := filepath.Join(layersDir, p)

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("%w: layer %s: %v", ErrAssetMissing, ml.ID, err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode layer %s: %w", ml.ID, err)
	}

	dstW := roundScale(ml.Width, s.OutputScale)
	dstH := roundScale(ml.Height, s.OutputScale)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	layer := &Layer{
		ID:        ml.ID,
		Path:      ml.Path,
		Type:      Kind(ml.Type),
		Character: Character(orDefault(ml.Character, string(CharNone))),
		Phoneme:   Phoneme(orDefault(ml.Phoneme, string(PhonemeNone))),
		X:         roundScale(ml.X, s.OutputScale),
		Y:         roundScale(ml.Y, s.OutputScale),
		Width:     dstW,
		Height:    dstH,
		ZIndex:    ml.ZIndex,
		Visible:   kindVisible(ml),
		Buffer:    dst,
	}
	return layer, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func roundScale(v int, scale float64) int {
	return int(float64(v)*scale + 0.5)
}

// computeBrowBounds finds the tight, padded bounding box of non-
// transparent pixels in a brow layer and caches a cropped buffer for
// rotation.
func computeBrowBounds(l *Layer) {
	b := l.Buffer.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := l.Buffer.PixOffset(x, y)
			if l.Buffer.Pix[off+3] != 0 {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if !found {
		l.ContentBounds = Rect{X: 0, Y: 0, W: l.Width, H: l.Height}
		l.CroppedBuffer = l.Buffer
		return
	}

	minX = clampInt(minX-browContentPad, b.Min.X, b.Max.X)
	minY = clampInt(minY-browContentPad, b.Min.Y, b.Max.Y)
	maxX = clampInt(maxX+browContentPad, b.Min.X, b.Max.X-1)
	maxY = clampInt(maxY+browContentPad, b.Min.Y, b.Max.Y-1)

	rect := Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}
	l.ContentBounds = rect

	cropped := image.NewRGBA(image.Rect(0, 0, rect.W, rect.H))
	draw.Draw(cropped, cropped.Bounds(), l.Buffer, image.Pt(rect.X, rect.Y), draw.Src)
	l.CroppedBuffer = cropped
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// maskLightsOn zeroes the alpha of any pixel whose max RGB channel is
// at or below lightsOnAlphaFloor, leaving only the bright lit regions.
func maskLightsOn(l *Layer) {
	b := l.Buffer.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := l.Buffer.PixOffset(x, y)
			r, g, bch := l.Buffer.Pix[off], l.Buffer.Pix[off+1], l.Buffer.Pix[off+2]
			maxCh := r
			if g > maxCh {
				maxCh = g
			}
			if bch > maxCh {
				maxCh = bch
			}
			if maxCh <= lightsOnAlphaFloor {
				l.Buffer.Pix[off+3] = 0
			}
		}
	}
}

// maskBoundingBox scans a mask layer for the bounding box of non-zero
// alpha pixels; that box is the TV viewport.
func maskBoundingBox(l *Layer) Rect {
	b := l.Buffer.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := l.Buffer.PixOffset(x, y)
			if l.Buffer.Pix[off+3] != 0 {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if !found {
		return Rect{}
	}
	return Rect{X: l.X + minX, Y: l.Y + minY, W: maxX - minX + 1, H: maxY - minY + 1}
}

// ByKind returns all visible layers of the given kind, in zIndex order.
func (s *Store) ByKind(k Kind) []*Layer {
	var out []*Layer
	for _, l := range s.Ordered {
		if l.Type == k && l.Visible {
			out = append(out, l)
		}
	}
	return out
}

// ByKindAndCharacter returns all visible layers of the given kind
// belonging to the given character.
func (s *Store) ByKindAndCharacter(k Kind, c Character) []*Layer {
	var out []*Layer
	for _, l := range s.Ordered {
		if l.Type == k && l.Character == c && l.Visible {
			out = append(out, l)
		}
	}
	return out
}
