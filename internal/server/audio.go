package server

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-audio/wav"
)

// ErrAudioDecodeFailed is returned when the uploaded clip cannot be
// decoded. Only WAV (PCM) is supported; MP3 decoding is out of scope
// for this package (no third-party MP3 decoder is wired).
var ErrAudioDecodeFailed = errors.New("audio decode failed")

const targetSampleRate = 16000

// DecodeToMono16k decodes a WAV file into float32 mono samples at
// 16 kHz, downmixing multi-channel input by averaging channels and
// resampling via the same nearest-sample index formula the encoder
// uses for its own resampling.
func DecodeToMono16k(r io.Reader) ([]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrAudioDecodeFailed, err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrAudioDecodeFailed
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Join(ErrAudioDecodeFailed, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		srcRate = targetSampleRate
	}

	frameCount := len(buf.Data) / channels
	mono := make([]float32, frameCount)
	maxVal := float32(int(1) << (buf.SourceBitDepth - 1))
	if buf.SourceBitDepth == 0 {
		maxVal = 32768
	}

	for i := 0; i < frameCount; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		mono[i] = float32(sum) / float32(channels) / maxVal
	}

	if srcRate == targetSampleRate {
		return mono, nil
	}

	outLen := len(mono) * targetSampleRate / srcRate
	out := make([]float32, outLen)
	for i := range out {
		srcIdx := i * srcRate / targetSampleRate
		if srcIdx >= len(mono) {
			srcIdx = len(mono) - 1
		}
		out[i] = mono[srcIdx]
	}
	return out, nil
}
