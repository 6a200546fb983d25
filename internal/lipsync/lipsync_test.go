package lipsync

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineClip(freq float64, sampleRate, n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestAnalyzeSilenceReturnsA(t *testing.T) {
	a := New()
	samples := make([]float32, 512)
	ph := a.Analyze(samples)
	assert.Equal(t, PhonemeA, ph)
}

func TestCalibrateThenAnalyzeLoudClipNotMostlyA(t *testing.T) {
	sampleRate := 16000
	clip := sineClip(220, sampleRate, sampleRate, 0.6)

	a := New()
	a.Calibrate(clip, sampleRate)

	spf := sampleRate / 30
	nonA := 0
	total := 0
	for i := 0; i+spf <= len(clip); i += spf {
		ph := a.Analyze(clip[i : i+spf])
		total++
		if ph != PhonemeA {
			nonA++
		}
	}
	assert.Greater(t, total, 0)
	assert.Greater(t, nonA, total/2)
}

func TestResetClearsHistory(t *testing.T) {
	a := New()
	a.Analyze(sineClip(220, 16000, 512, 0.8))
	a.Reset()
	assert.Equal(t, PhonemeA, a.lastPhon)
	assert.Empty(t, a.energyHist)
}
