package compositor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/normanking/cortexstream/internal/expr"
)

// EyeKey builds the ExpressionLayerCache key for a translated eye or
// cover layer.
func EyeKey(layerID string, dx, dy int) string {
	return fmt.Sprintf("eye:%s:%d:%d", layerID, dx, dy)
}

// BrowKey builds the ExpressionLayerCache key for a rotated brow
// layer. rot10 is rotation * 10, rounded, per spec.
func BrowKey(layerID string, dy int, rot10 int) string {
	return fmt.Sprintf("brow:%s:%d:%d", layerID, dy, rot10)
}

// Rot10 rounds a rotation in degrees to tenths for use as a cache key
// component.
func Rot10(deg float64) int {
	if deg >= 0 {
		return int(deg*10 + 0.5)
	}
	return -int(-deg*10 + 0.5)
}

// ExprDigest concatenates both characters' quantized eye and brow
// values into the L1 cache key component.
func ExprDigest(left, right expr.Offset) string {
	return fmt.Sprintf("l%d,%d,%d,%d,%d:r%d,%d,%d,%d,%d",
		left.EyeX, left.EyeY, left.BrowY, left.BrowAsymL, left.BrowAsymRVal,
		right.EyeX, right.EyeY, right.BrowY, right.BrowAsymL, right.BrowAsymRVal,
	)
}

// L1Key composes the L1 cache key from the StaticBase version and the
// expression digest.
func L1Key(staticBaseVersion uint64, exprDigest string) string {
	return fmt.Sprintf("%d:%s", staticBaseVersion, exprDigest)
}

// L2Key composes the L2 cache key from an L1 key, lighting version,
// phonemes, and blink state.
func L2Key(l1Key string, lightingVersion uint64, leftPh, rightPh string, leftBlink, rightBlink bool) string {
	return fmt.Sprintf("%s:lv%d:%s:%s:%s:%s", l1Key, lightingVersion, leftPh, rightPh, boolChar(leftBlink), boolChar(rightBlink))
}

func boolChar(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// OutputKey composes the final cache key from an L2 key, the TV frame
// index, and a caption digest.
func OutputKey(l2Key string, tvFrameIndex int, captionHash string) string {
	return fmt.Sprintf("%s:tv%d:c%s", l2Key, tvFrameIndex, captionHash)
}

// CaptionDigest hashes a caption string into a short, stable key
// component; an empty caption hashes to "0".
func CaptionDigest(caption string) string {
	if caption == "" {
		return "0"
	}
	sum := sha1.Sum([]byte(caption))
	return hex.EncodeToString(sum[:6])
}
