package blink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlinkNeverTrueWithoutInProgress(t *testing.T) {
	c := New(30, 1)
	c.nextBlinkFrame = 1000000 // push far out so speaking suppression is exercised

	for f := 0; f < 60; f++ {
		blinking := c.Update(f, true)
		assert.False(t, blinking)
	}
}

func TestBlinkIntervalWithinBounds(t *testing.T) {
	c := New(30, 2)
	c.nextBlinkFrame = 0

	frame := 0
	blinkStarts := 0
	lastEnd := -1
	for frame < 3000 {
		wasBlinking := c.IsBlinking()
		blinking := c.Update(frame, false)
		if blinking && !wasBlinking {
			blinkStarts++
			if lastEnd >= 0 {
				gap := frame - lastEnd
				assert.GreaterOrEqual(t, gap, 3*30)
				assert.LessOrEqual(t, gap, 5*30)
			}
		}
		if wasBlinking && !blinking {
			lastEnd = frame
		}
		frame++
	}
	assert.Greater(t, blinkStarts, 0)
}
