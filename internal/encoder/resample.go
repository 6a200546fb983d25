package encoder

// Resample linearly nearest-samples mono float32 input at inputRate to
// exactly outputFrames * samplesPerFrame output samples at
// outputRate, clamping to [-1,1] and scaling to int16, per spec's
// fixed resampling formula. The result is duplicated into both stereo
// channels, interleaved.
func Resample(input []float32, inputRate, outputRate, samplesPerFrame, outputFrames int) []int16 {
	total := outputFrames * samplesPerFrame
	out := make([]int16, total*2)

	for i := 0; i < total; i++ {
		srcIdx := (i * inputRate) / outputRate
		var sample float32
		if srcIdx < len(input) {
			sample = input[srcIdx]
		}
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		v := int16(sample * 32767)
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}

// BytesPerFrame returns the exact byte count of one S16LE stereo PCM
// frame at the given rate and stream FPS: 2 channels * 2 bytes *
// floor(sampleRate/fps).
func BytesPerFrame(sampleRate, fps int) int {
	return 2 * 2 * (sampleRate / fps)
}

// FrameWindow slices pcm (interleaved int16 as bytes) for frame index
// f, returning exactly BytesPerFrame(sampleRate, fps) bytes, or
// silence if the clip has been exhausted.
func FrameWindow(pcm []byte, f, sampleRate, fps int) []byte {
	bpf := BytesPerFrame(sampleRate, fps)
	start := f * bpf
	if start >= len(pcm) {
		return make([]byte, bpf)
	}
	end := start + bpf
	if end > len(pcm) {
		window := make([]byte, bpf)
		copy(window, pcm[start:])
		return window
	}
	return pcm[start:end]
}

// PCMBytes converts int16 samples to little-endian bytes.
func PCMBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
