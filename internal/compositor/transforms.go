package compositor

import (
	"image"
	"math"

	"github.com/normanking/cortexstream/internal/layers"
)

// TransformedLayer is a pre-transformed buffer plus the placement
// offset at which it must be drawn onto the output canvas.
type TransformedLayer struct {
	Buffer *image.RGBA
	X, Y   int
}

// TranslateLayer implements the eye/cover translate transform:
// extract the sub-rectangle of the source buffer that remains in
// frame after translating by (dx,dy), padding with transparent pixels
// to the original output size.
func TranslateLayer(l *layers.Layer, dx, dy int) TransformedLayer {
	out := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	src := l.Buffer
	b := src.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		dstY := y + dy
		if dstY < 0 || dstY >= l.Height {
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			dstX := x + dx
			if dstX < 0 || dstX >= l.Width {
				continue
			}
			si := src.PixOffset(x, y)
			di := out.PixOffset(dstX, dstY)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}

	return TransformedLayer{Buffer: out, X: l.X, Y: l.Y}
}

// RotateBrowLayer rotates l's cropped content-bounds buffer around its
// center by angleDeg (positive counter-clockwise), then places the
// result at (centerX - newW/2, centerY - newH/2 + dy), cropping and
// clamping placement to >= 0 if it would extend past the top/left.
func RotateBrowLayer(l *layers.Layer, angleDeg float64, dy int) TransformedLayer {
	src := l.CroppedBuffer
	if src == nil {
		src = l.Buffer
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	rad := angleDeg * math.Pi / 180
	cosA := math.Abs(math.Cos(rad))
	sinA := math.Abs(math.Sin(rad))
	newW := int(float64(w)*cosA + float64(h)*sinA + 0.5)
	newH := int(float64(w)*sinA + float64(h)*cosA + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	rotated := rotateNearest(src, rad, newW, newH)

	centerX := l.X + l.ContentBounds.X + l.ContentBounds.W/2
	centerY := l.Y + l.ContentBounds.Y + l.ContentBounds.H/2

	placeX := centerX - newW/2
	placeY := centerY - newH/2 + dy

	cropX, cropY := 0, 0
	if placeX < 0 {
		cropX = -placeX
		placeX = 0
	}
	if placeY < 0 {
		cropY = -placeY
		placeY = 0
	}

	if cropX > 0 || cropY > 0 {
		cropped := image.NewRGBA(image.Rect(0, 0, newW-cropX, newH-cropY))
		for y := 0; y < cropped.Bounds().Dy(); y++ {
			for x := 0; x < cropped.Bounds().Dx(); x++ {
				si := rotated.PixOffset(x+cropX, y+cropY)
				di := cropped.PixOffset(x, y)
				copy(cropped.Pix[di:di+4], rotated.Pix[si:si+4])
			}
		}
		rotated = cropped
	}

	return TransformedLayer{Buffer: rotated, X: placeX, Y: placeY}
}

// rotateNearest rotates src by rad radians into a newW x newH
// transparent canvas using nearest-neighbor sampling, centered.
func rotateNearest(src *image.RGBA, rad float64, newW, newH int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, newW, newH))
	b := src.Bounds()
	srcCX, srcCY := float64(b.Dx())/2, float64(b.Dy())/2
	dstCX, dstCY := float64(newW)/2, float64(newH)/2

	cosA := math.Cos(-rad)
	sinA := math.Sin(-rad)

	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			dx := float64(x) - dstCX
			dy := float64(y) - dstCY
			sx := dx*cosA - dy*sinA + srcCX
			sy := dx*sinA + dy*cosA + srcCY

			isx := int(sx)
			isy := int(sy)
			if isx < 0 || isy < 0 || isx >= b.Dx() || isy >= b.Dy() {
				continue
			}
			si := src.PixOffset(b.Min.X+isx, b.Min.Y+isy)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return out
}

// BrowRotationForY derives the rotation angle in degrees from browY
// relative to configured limits: at y = minY, rotation = rotUp; at
// y = maxY, rotation = -rotDown; linear in between.
func BrowRotationForY(y, minY, maxY int, rotUp, rotDown float64) float64 {
	if maxY == minY {
		return 0
	}
	frac := float64(y-minY) / float64(maxY-minY)
	return rotUp + frac*(-rotDown-rotUp)
}
