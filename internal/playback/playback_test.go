package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	pos1 := q.Push(&Clip{Character: "left"})
	pos2 := q.Push(&Clip{Character: "right"})
	assert.Equal(t, 1, pos1)
	assert.Equal(t, 2, pos2)

	first := q.Pop()
	assert.Equal(t, "left", first.Character)
	assert.Equal(t, 1, q.Len())
}

func TestSyncedPlaybackCompletesAtEnd(t *testing.T) {
	sampleRate := 16000
	samples := make([]float32, sampleRate) // 1s
	p := New()
	p.Load(&Clip{Samples: samples, SampleRate: sampleRate, Duration: time.Second, Character: "left"})

	assert.True(t, p.IsPlaying())
	frames := (&Clip{Samples: samples, SampleRate: sampleRate}).FrameCount()
	// 16000 samples hold 30 whole 533-sample frames plus a 10-sample
	// tail; the frame that consumes the tail ends playback.
	for f := 0; f <= frames; f++ {
		p.GetPhonemeAtFrame(f)
	}
	assert.False(t, p.IsPlaying())
}
