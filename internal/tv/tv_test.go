package tv

import (
	"image"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTickAdvancesAndLoopsOnHold(t *testing.T) {
	c := New(100, 100, 30, false, zerolog.Nop())
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	c.items = []*Item{
		{Type: ItemImage, FrameCount: 3, Frames: []*image.RGBA{frame, frame, frame}},
	}
	c.Play()

	for i := 0; i < 5; i++ {
		c.Tick()
	}
	assert.Equal(t, StatePlaying, c.State())
	assert.Less(t, c.FrameIndex(), 3)
}

func TestTickAdvancesItemOnAutoAdvance(t *testing.T) {
	c := New(100, 100, 30, true, zerolog.Nop())
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	c.items = []*Item{
		{Type: ItemImage, FrameCount: 2, Frames: []*image.RGBA{frame, frame}},
		{Type: ItemImage, FrameCount: 2, Frames: []*image.RGBA{frame, frame}},
	}
	c.Play()

	for i := 0; i < 3; i++ {
		c.Tick()
	}
	assert.Equal(t, 1, c.currentIdx)
}

func TestStateTransitions(t *testing.T) {
	c := New(100, 100, 30, true, zerolog.Nop())
	assert.Equal(t, StateStopped, c.State())
	c.items = []*Item{{Type: ItemImage, FrameCount: 1}}
	c.Play()
	assert.Equal(t, StatePlaying, c.State())
	c.Pause()
	assert.Equal(t, StatePaused, c.State())
	c.Stop()
	assert.Equal(t, StateStopped, c.State())
}
