package compositor

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/normanking/cortexstream/internal/layers"
)

const (
	l2Capacity    = 200
	l2EvictN      = 10
	l2JPEGQuality = 85
)

// L2Cache caches encoded JPEG frames equal to L1 plus mouth-phoneme,
// blink, and lights-on overlays.
type L2Cache struct {
	cache *orderedCache[[]byte]
}

// NewL2Cache constructs an empty L2 cache.
func NewL2Cache() *L2Cache {
	return &L2Cache{cache: newOrderedCache[[]byte](l2Capacity, l2EvictN)}
}

func (c *L2Cache) get(key string) ([]byte, bool) { return c.cache.get(key) }
func (c *L2Cache) put(key string, v []byte)        { c.cache.put(key, v) }

// Len reports the current entry count.
func (c *L2Cache) Len() int { return c.cache.len() }

// Clear drops all entries.
func (c *L2Cache) Clear() { c.cache.clear() }

// BuildL2 composites the mouth layer for each speaking character, a
// blink overlay if blinking, foreground emission layers (blend mode),
// and the lights-on overlay if lightsOn, over the L1 frame, then
// encodes the result as JPEG.
func BuildL2(store *layers.Store, l1 *L1Frame, leftPh, rightPh string, leftBlink, rightBlink, lightsOn bool, emissionMix layers.BlendMode) ([]byte, error) {
	out := image.NewRGBA(l1.Data.Bounds())
	copy(out.Pix, l1.Data.Pix)

	applyMouth(store, out, layers.CharLeft, leftPh)
	applyMouth(store, out, layers.CharRight, rightPh)

	if leftBlink {
		applyBlink(store, out, layers.CharLeft)
	}
	if rightBlink {
		applyBlink(store, out, layers.CharRight)
	}

	for _, l := range store.ByKind(layers.KindEmissionFg) {
		placed := layers.PlaceOnCanvas(out, l)
		layers.BlendOver(out, placed, emissionMix)
	}

	if lightsOn {
		for _, l := range store.ByKind(layers.KindLightsOn) {
			placed := placeLayerOnCanvas(out, l)
			compositeOver(out, placed)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: l2JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func applyMouth(store *layers.Store, out *image.RGBA, char layers.Character, phoneme string) {
	for _, l := range store.ByKindAndCharacter(layers.KindMouth, char) {
		if string(l.Phoneme) != phoneme {
			continue
		}
		placed := placeLayerOnCanvas(out, l)
		compositeOver(out, placed)
	}
}

func applyBlink(store *layers.Store, out *image.RGBA, char layers.Character) {
	for _, l := range store.ByKindAndCharacter(layers.KindBlink, char) {
		placed := placeLayerOnCanvas(out, l)
		compositeOver(out, placed)
	}
}
