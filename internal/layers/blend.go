package layers

import "image"

// BlendMode is one of the SVG/Porter-Duff compositing modes this
// compositor supports for emission layers. The TV reflection is
// drawn with plain alpha-over, not through a BlendMode.
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendHardLight  BlendMode = "hard-light"
	BlendSoftLight  BlendMode = "soft-light"
	BlendDifference BlendMode = "difference"
	BlendExclusion  BlendMode = "exclusion"
	BlendAdd        BlendMode = "add"
	BlendSubtract   BlendMode = "subtract"
	BlendDivide     BlendMode = "divide"
)

// blendFn computes one channel's blended value, both inputs and the
// result normalized to [0,1].
type blendFn func(cb, cs float64) float64

var blendFns = map[BlendMode]blendFn{
	BlendNormal:     func(cb, cs float64) float64 { return cs },
	BlendMultiply:   func(cb, cs float64) float64 { return cb * cs },
	BlendScreen:     func(cb, cs float64) float64 { return cb + cs - cb*cs },
	BlendOverlay:    overlayFn,
	BlendDarken:     func(cb, cs float64) float64 { return min(cb, cs) },
	BlendLighten:    func(cb, cs float64) float64 { return max(cb, cs) },
	BlendHardLight:  func(cb, cs float64) float64 { return overlayFn(cs, cb) },
	BlendSoftLight:  softLightFn,
	BlendDifference: func(cb, cs float64) float64 { return abs(cb - cs) },
	BlendExclusion:  func(cb, cs float64) float64 { return cb + cs - 2*cb*cs },
	BlendAdd:        func(cb, cs float64) float64 { return clamp01(cb + cs) },
	BlendSubtract:   func(cb, cs float64) float64 { return clamp01(cb - cs) },
	BlendDivide: func(cb, cs float64) float64 {
		if cs <= 0 {
			return 1
		}
		return clamp01(cb / cs)
	},
}

func overlayFn(cb, cs float64) float64 {
	if cb <= 0.5 {
		return 2 * cb * cs
	}
	return 1 - 2*(1-cb)*(1-cs)
}

func softLightFn(cb, cs float64) float64 {
	if cs <= 0.5 {
		return cb - (1-2*cs)*cb*(1-cb)
	}
	var d float64
	if cb <= 0.25 {
		d = ((16*cb-12)*cb + 4) * cb
	} else {
		d = sqrt(cb)
	}
	return cb + (2*cs-1)*(d-cb)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// sqrt is a tiny Newton iteration to avoid importing math solely for
// this single call site in the blend table.
func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

// BlendOver composites src over dst in place using the given blend
// mode for color mixing and standard alpha-over for the result alpha.
// Both images must share dst's bounds; src is read starting at its own
// origin pixel-for-pixel against dst.
func BlendOver(dst *image.RGBA, src *image.RGBA, mode BlendMode) {
	fn, ok := blendFns[mode]
	if !ok {
		fn = blendFns[BlendNormal]
	}

	bounds := dst.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			si := src.PixOffset(x, y)
			sa := float64(src.Pix[si+3]) / 255
			if sa == 0 {
				continue
			}

			di := dst.PixOffset(x, y)
			da := float64(dst.Pix[di+3]) / 255

			for c := 0; c < 3; c++ {
				cb := float64(dst.Pix[di+c]) / 255
				cs := float64(src.Pix[si+c]) / 255
				blended := fn(cb, cs)
				// Standard alpha compositing of the blended color
				// over the existing pixel.
				outA := sa + da*(1-sa)
				var out float64
				if outA > 0 {
					out = (blended*sa + cb*da*(1-sa)) / outA
				}
				dst.Pix[di+c] = clampByte(out * 255)
				if c == 2 {
					dst.Pix[di+3] = clampByte(outA * 255)
				}
			}
		}
	}
}

// AlphaOver composites src over dst with plain source-over alpha
// blending (no color mixing function), used for non-emission static
// layers.
func AlphaOver(dst *image.RGBA, src *image.RGBA) {
	bounds := dst.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			si := src.PixOffset(x, y)
			sa := float64(src.Pix[si+3]) / 255
			if sa == 0 {
				continue
			}
			if sa == 1 {
				di := dst.PixOffset(x, y)
				copy(dst.Pix[di:di+4], src.Pix[si:si+4])
				continue
			}

			di := dst.PixOffset(x, y)
			da := float64(dst.Pix[di+3]) / 255
			outA := sa + da*(1-sa)
			for c := 0; c < 3; c++ {
				cb := float64(dst.Pix[di+c]) / 255
				cs := float64(src.Pix[si+c]) / 255
				var out float64
				if outA > 0 {
					out = (cs*sa + cb*da*(1-sa)) / outA
				}
				dst.Pix[di+c] = clampByte(out * 255)
			}
			dst.Pix[di+3] = clampByte(outA * 255)
		}
	}
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
