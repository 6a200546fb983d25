package encoder

import (
	"bytes"
	"image/jpeg"
)

// JPEGToRGB24 decodes a JPEG-encoded frame into tightly packed RGB24
// bytes (no stride padding, no alpha), the pixel format the ffmpeg
// subprocess is configured to read on its video pipe.
func JPEGToRGB24(data []byte) ([]byte, int, int, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*3)

	idx := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out[idx] = byte(r >> 8)
			out[idx+1] = byte(g >> 8)
			out[idx+2] = byte(bl >> 8)
			idx += 3
		}
	}
	return out, w, h, nil
}
