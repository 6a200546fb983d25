package compositor

import (
	"image"

	"github.com/normanking/cortexstream/internal/expr"
	"github.com/normanking/cortexstream/internal/layers"
)

const l1Capacity = 25
const l1EvictN = 5

// L1Frame is a raw RGBA frame equal to StaticBase plus the current
// eye/brow/eye-cover/nose layers.
type L1Frame struct {
	Data   *image.RGBA
	Width  int
	Height int
}

// L1Cache caches ExpressionBase composites keyed by StaticBase version
// and expression digest.
type L1Cache struct {
	cache *orderedCache[*L1Frame]
}

// NewL1Cache constructs an empty L1 cache.
func NewL1Cache() *L1Cache {
	return &L1Cache{cache: newOrderedCache[*L1Frame](l1Capacity, l1EvictN)}
}

func (c *L1Cache) get(key string) (*L1Frame, bool) { return c.cache.get(key) }
func (c *L1Cache) put(key string, f *L1Frame)       { c.cache.put(key, f) }

// Len reports the current entry count.
func (c *L1Cache) Len() int { return c.cache.len() }

// Clear drops all entries; used on StaticBase rebuild.
func (c *L1Cache) Clear() { c.cache.clear() }

// BuildL1 composites staticBase with both characters' eye/brow/cover
// transforms and nose overlays into a new raw RGBA frame. Geometric
// per-layer transforms are resolved through exprCache so repeated
// offsets reuse already-rotated/translated buffers.
func BuildL1(store *layers.Store, exprCache *ExpressionLayerCache, staticBase *image.RGBA, left, right expr.Offset, limits map[expr.Character]expr.Limits, composeWorkers int) *L1Frame {
	w, h := staticBase.Bounds().Dx(), staticBase.Bounds().Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(out.Pix, staticBase.Pix)

	var tasks []transformTask
	var placements []func(TransformedLayer)

	addEyeTasks := func(char layers.Character, off expr.Offset) {
		for _, l := range store.ByKindAndCharacter(layers.KindExprEye, char) {
			l := l
			key := EyeKey(l.ID, off.EyeX, off.EyeY)
			tasks = append(tasks, transformTask{Key: key, Build: func() TransformedLayer {
				return TranslateLayer(l, off.EyeX, off.EyeY)
			}})
			placements = append(placements, func(t TransformedLayer) { compositeOver(out, t) })
		}
		for _, l := range store.ByKindAndCharacter(layers.KindExprCover, char) {
			l := l
			key := EyeKey(l.ID, off.EyeX, off.EyeY)
			tasks = append(tasks, transformTask{Key: key, Build: func() TransformedLayer {
				return TranslateLayer(l, off.EyeX, off.EyeY)
			}})
			placements = append(placements, func(t TransformedLayer) { compositeOver(out, t) })
		}
	}

	addBrowTasks := func(char layers.Character, off expr.Offset, exprChar expr.Character) {
		lim := limits[exprChar]
		for _, l := range store.ByKindAndCharacter(layers.KindExprBrow, char) {
			l := l
			angle := BrowRotationForY(off.BrowY, lim.Eyebrows.MinY, lim.Eyebrows.MaxY, lim.Eyebrows.RotUp, lim.Eyebrows.RotDown)
			if char == layers.CharRight {
				angle = -angle
			}
			rot10 := Rot10(angle)
			key := BrowKey(l.ID, off.BrowY, rot10)
			tasks = append(tasks, transformTask{Key: key, Build: func() TransformedLayer {
				return RotateBrowLayer(l, angle, off.BrowY)
			}})
			placements = append(placements, func(t TransformedLayer) { compositeOver(out, t) })
		}
	}

	addEyeTasks(layers.CharLeft, left)
	addEyeTasks(layers.CharRight, right)
	addBrowTasks(layers.CharLeft, left, expr.Left)
	addBrowTasks(layers.CharRight, right, expr.Right)

	results := exprCache.ResolveAll(tasks, composeWorkers)
	for i, r := range results {
		placements[i](r)
	}

	for _, l := range store.ByKind(layers.KindNose) {
		placed := placeLayerOnCanvas(out, l)
		layers.AlphaOver(out, placed)
	}

	return &L1Frame{Data: out, Width: w, Height: h}
}

func compositeOver(dst *image.RGBA, t TransformedLayer) {
	b := t.Buffer.Bounds()
	for y := 0; y < b.Dy(); y++ {
		dy := t.Y + y
		if dy < 0 || dy >= dst.Bounds().Dy() {
			continue
		}
		for x := 0; x < b.Dx(); x++ {
			dx := t.X + x
			if dx < 0 || dx >= dst.Bounds().Dx() {
				continue
			}
			si := t.Buffer.PixOffset(b.Min.X+x, b.Min.Y+y)
			sa := t.Buffer.Pix[si+3]
			if sa == 0 {
				continue
			}
			di := dst.PixOffset(dx, dy)
			if sa == 255 {
				copy(dst.Pix[di:di+4], t.Buffer.Pix[si:si+4])
				continue
			}
			alphaBlendPixel(dst.Pix[di:di+4], t.Buffer.Pix[si:si+4])
		}
	}
}

func alphaBlendPixel(dst, src []byte) {
	sa := float64(src[3]) / 255
	da := float64(dst[3]) / 255
	outA := sa + da*(1-sa)
	for c := 0; c < 3; c++ {
		cs := float64(src[c]) / 255
		cb := float64(dst[c]) / 255
		var out float64
		if outA > 0 {
			out = (cs*sa + cb*da*(1-sa)) / outA
		}
		dst[c] = clampByte(out * 255)
	}
	dst[3] = clampByte(outA * 255)
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func placeLayerOnCanvas(canvas *image.RGBA, l *layers.Layer) TransformedLayer {
	return TransformedLayer{Buffer: l.Buffer, X: l.X, Y: l.Y}
}
