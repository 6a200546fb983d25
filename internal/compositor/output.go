package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	outputCapacity    = 60
	outputEvictN      = 5
	outputJPEGQuality = 88
	captionBarHeight  = 36
)

// OutputCache caches final encoded JPEG frames equal to L2 plus
// TV-region content, TV reflection, and the caption banner.
type OutputCache struct {
	cache *orderedCache[[]byte]
}

// NewOutputCache constructs an empty output cache.
func NewOutputCache() *OutputCache {
	return &OutputCache{cache: newOrderedCache[[]byte](outputCapacity, outputEvictN)}
}

func (c *OutputCache) get(key string) ([]byte, bool) { return c.cache.get(key) }
func (c *OutputCache) put(key string, v []byte)        { c.cache.put(key, v) }

// Len reports the current entry count.
func (c *OutputCache) Len() int { return c.cache.len() }

// Clear drops all entries.
func (c *OutputCache) Clear() { c.cache.clear() }

// BuildOutput decodes l2Jpeg, draws the TV frame into viewport (if
// present), the reflection layer at (reflX, reflY) (if present), and a
// caption banner (if non-empty), then re-encodes as JPEG.
func BuildOutput(l2Jpeg []byte, tvFrame *image.RGBA, tvViewport image.Rectangle, reflection *image.RGBA, reflX, reflY int, caption string) ([]byte, error) {
	base, err := decodeJPEGToRGBA(l2Jpeg)
	if err != nil {
		return nil, err
	}

	if tvFrame != nil {
		drawInto(base, tvFrame, tvViewport.Min.X, tvViewport.Min.Y)
	}
	if reflection != nil {
		compositeOver(base, TransformedLayer{Buffer: reflection, X: reflX, Y: reflY})
	}
	if caption != "" {
		drawCaption(base, caption)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, base, &jpeg.Options{Quality: outputJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeJPEGToRGBA(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out, nil
}

func drawInto(dst, src *image.RGBA, x, y int) {
	b := src.Bounds()
	for sy := 0; sy < b.Dy(); sy++ {
		dy := y + sy
		if dy < 0 || dy >= dst.Bounds().Dy() {
			continue
		}
		for sx := 0; sx < b.Dx(); sx++ {
			dx := x + sx
			if dx < 0 || dx >= dst.Bounds().Dx() {
				continue
			}
			si := src.PixOffset(b.Min.X+sx, b.Min.Y+sy)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
}

// drawCaption paints a semi-transparent banner across the bottom of
// the frame and renders text onto it with the basicfont bitmap face
// from golang.org/x/image, matching the teacher pack's preference for
// golang.org/x/image subpackages over a dedicated text-shaping lib.
func drawCaption(dst *image.RGBA, caption string) {
	b := dst.Bounds()
	barTop := b.Max.Y - captionBarHeight
	if barTop < b.Min.Y {
		barTop = b.Min.Y
	}

	bg := color.RGBA{0, 0, 0, 160}
	for y := barTop; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			di := dst.PixOffset(x, y)
			alphaBlendPixel(dst.Pix[di:di+4], []byte{bg.R, bg.G, bg.B, bg.A})
		}
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(12), Y: fixed.I(barTop + captionBarHeight - 12)},
	}
	d.DrawString(caption)
}
