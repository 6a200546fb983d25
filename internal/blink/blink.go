// Package blink implements the per-character blink state machine.
package blink

import "math/rand"

const blinkDurationFrames = 4

// Controller is a per-character, FPS-parameterized blink state
// machine. It is suppressed while the character is speaking.
type Controller struct {
	fps             int
	isBlinking      bool
	blinkStartFrame int
	nextBlinkFrame  int
	rng             *rand.Rand
}

// New constructs a controller for the given frame rate. The first
// blink is scheduled immediately so idle characters blink promptly.
func New(fps int, seed int64) *Controller {
	return &Controller{
		fps:            fps,
		nextBlinkFrame: 0,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Update advances the state machine by one frame and returns whether
// the character is currently blinking.
func (c *Controller) Update(frame int, isSpeaking bool) bool {
	if isSpeaking && !c.isBlinking {
		minNext := frame + c.fps
		if c.nextBlinkFrame < minNext {
			c.nextBlinkFrame = minNext
		}
		return false
	}

	if !c.isBlinking && frame >= c.nextBlinkFrame {
		c.isBlinking = true
		c.blinkStartFrame = frame
		return true
	}

	if c.isBlinking && frame >= c.blinkStartFrame+blinkDurationFrames {
		c.isBlinking = false
		lo := 3 * c.fps
		hi := 5 * c.fps
		c.nextBlinkFrame = frame + lo + c.rng.Intn(hi-lo+1)
		return false
	}

	return c.isBlinking
}

// IsBlinking reports the current blink state without advancing it.
func (c *Controller) IsBlinking() bool {
	return c.isBlinking
}
