package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResampleProducesExactFrameCount(t *testing.T) {
	input := make([]float32, 16000)
	for i := range input {
		input[i] = 0.5
	}

	fps := 30
	outputRate := 44100
	samplesPerFrame := outputRate / fps
	outputFrames := 10

	out := Resample(input, 16000, outputRate, samplesPerFrame, outputFrames)
	assert.Len(t, out, outputFrames*samplesPerFrame*2)
}

func TestBytesPerFrameMatchesSpecFormula(t *testing.T) {
	assert.Equal(t, 2*2*(44100/30), BytesPerFrame(44100, 30))
}

func TestFrameWindowPadsWithSilenceAtEnd(t *testing.T) {
	pcm := make([]byte, 10)
	for i := range pcm {
		pcm[i] = byte(i + 1)
	}
	window := FrameWindow(pcm, 5, 44100, 30)
	assert.Len(t, window, BytesPerFrame(44100, 30))
}

func TestPCMBytesRoundTripsLength(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	b := PCMBytes(samples)
	assert.Len(t, b, len(samples)*2)
}
