package server

import (
	"bytes"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestWAV(t *testing.T, sampleRate, numChans int, samples []int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := wav.NewEncoder(&buf, sampleRate, 16, numChans, 1)

	intBuf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: numChans},
		Data:   samples,
	}
	require.NoError(t, enc.Write(intBuf))
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestDecodeToMono16kPassthroughAtTargetRate(t *testing.T) {
	samples := make([]int, 1600)
	for i := range samples {
		samples[i] = 1000
	}
	data := encodeTestWAV(t, targetSampleRate, 1, samples)

	out, err := DecodeToMono16k(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, out, len(samples))
	assert.InDelta(t, float32(1000)/32768, out[0], 0.01)
}

func TestDecodeToMono16kDownmixesStereo(t *testing.T) {
	samples := make([]int, 0, 1600*2)
	for i := 0; i < 1600; i++ {
		samples = append(samples, 1000, -1000)
	}
	data := encodeTestWAV(t, targetSampleRate, 2, samples)

	out, err := DecodeToMono16k(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, out, 1600)
	assert.InDelta(t, 0, out[0], 0.01)
}

func TestDecodeToMono16kRejectsGarbage(t *testing.T) {
	_, err := DecodeToMono16k(bytes.NewReader([]byte("not a wav file")))
	assert.ErrorIs(t, err, ErrAudioDecodeFailed)
}

func TestDecodeToMono16kResamplesDownFromHigherRate(t *testing.T) {
	samples := make([]int, 4800)
	for i := range samples {
		samples[i] = 500
	}
	data := encodeTestWAV(t, 48000, 1, samples)

	out, err := DecodeToMono16k(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, out, 1600)
}
