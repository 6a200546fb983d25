package layers

import (
	"image"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// StaticBase precomposites all non-animated layers (backgrounds,
// props, lighting emissions) into one raw RGBA image. It is rebuilt
// only on lighting/emission changes and is shared-read between
// rebuilds via atomic pointer swap.
type StaticBase struct {
	store *Store

	mu          sync.Mutex
	current     *image.RGBA
	version     atomic.Uint64
	emissionMix BlendMode
}

// NewStaticBase constructs an empty base bound to store; call Rebuild
// once before first use.
func NewStaticBase(store *Store) *StaticBase {
	return &StaticBase{store: store, emissionMix: BlendSoftLight}
}

// SetEmissionBlendMode changes the blend mode used for emission layers
// on the next rebuild.
func (b *StaticBase) SetEmissionBlendMode(mode BlendMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emissionMix = mode
}

// Version returns the current base version. Any L1 entry whose key
// embeds an older version is unreachable.
func (b *StaticBase) Version() uint64 {
	return b.version.Load()
}

// Current returns the current base buffer (read-only for callers).
func (b *StaticBase) Current() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Rebuild composites all static layers (excluding mask and lights-on)
// in zIndex order over an opaque black canvas, using the configured
// blend mode for emission layers and normal alpha-over for everything
// else. Bumps the version on completion.
func (b *StaticBase) Rebuild() *image.RGBA {
	w, h := b.store.OutputWidth, b.store.OutputHeight
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range canvas.Pix {
		if i%4 == 3 {
			canvas.Pix[i] = 255
		}
	}

	var staticLayers []*Layer
	for _, l := range b.store.Ordered {
		if !l.Visible {
			continue
		}
		switch l.Type {
		case KindMask, KindLightsOn:
			continue
		case KindStatic, KindEmission:
			staticLayers = append(staticLayers, l)
		}
	}
	sort.SliceStable(staticLayers, func(i, j int) bool {
		return staticLayers[i].ZIndex < staticLayers[j].ZIndex
	})

	b.mu.Lock()
	mix := b.emissionMix
	b.mu.Unlock()

	for _, l := range staticLayers {
		placed := PlaceOnCanvas(canvas, l)
		if l.Type == KindEmission {
			BlendOver(canvas, placed, mix)
		} else {
			AlphaOver(canvas, placed)
		}
	}

	b.mu.Lock()
	b.current = canvas
	b.mu.Unlock()
	b.version.Add(1)

	return canvas
}

// EmissionBlendMode returns the blend mode currently configured for
// emission layers, for callers compositing foreground emission
// outside StaticBase (see internal/compositor.BuildL2).
func (b *StaticBase) EmissionBlendMode() BlendMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emissionMix
}

// PlaceOnCanvas returns a buffer the size of canvas with l's buffer
// drawn at its (X,Y) offset and transparent elsewhere, so blend and
// alpha-over helpers can operate on matching-size images.
func PlaceOnCanvas(canvas *image.RGBA, l *Layer) *image.RGBA {
	out := image.NewRGBA(canvas.Bounds())
	srcB := l.Buffer.Bounds()
	for y := 0; y < srcB.Dy(); y++ {
		dy := l.Y + y
		if dy < canvas.Bounds().Min.Y || dy >= canvas.Bounds().Max.Y {
			continue
		}
		for x := 0; x < srcB.Dx(); x++ {
			dx := l.X + x
			if dx < canvas.Bounds().Min.X || dx >= canvas.Bounds().Max.X {
				continue
			}
			si := l.Buffer.PixOffset(srcB.Min.X+x, srcB.Min.Y+y)
			di := out.PixOffset(dx, dy)
			copy(out.Pix[di:di+4], l.Buffer.Pix[si:si+4])
		}
	}
	return out
}
