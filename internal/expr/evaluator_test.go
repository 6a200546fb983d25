package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateAtMsReturnsIntegers(t *testing.T) {
	e := NewEvaluator()
	e.LoadPlan(&Plan{
		Character: Left,
		Listener:  Right,
		TotalMs:   1000,
		Actions: []Action{
			{T: 0, Type: ActionEye, Target: Left, Look: LookListener, Amount: 0.8, DurationMs: 200},
			{T: 100, Type: ActionBrow, Target: Left, Emote: BrowRaise, Amount: 0.5, DurationMs: 300},
			{T: 50, Type: ActionMouth, Target: Left, Shape: MouthSmile, DurationMs: 400},
		},
	})

	for ms := 0; ms <= 1000; ms += 37 {
		off := e.EvaluateAtMs(Left, ms)
		assert.Equal(t, off.EyeX%4, 0)
		assert.Equal(t, off.EyeY%4, 0)
		assert.Equal(t, off.BrowY%2, 0)
	}
}

func TestQuantizeBrowNeverZerosNonZero(t *testing.T) {
	assert.Equal(t, 2, QuantizeBrow(1))
	assert.Equal(t, -2, QuantizeBrow(-1))
	assert.Equal(t, 0, QuantizeBrow(0))
}

func TestMouthIntervalActiveWindow(t *testing.T) {
	e := NewEvaluator()
	e.LoadPlan(&Plan{
		Character: Left,
		Listener:  Right,
		TotalMs:   500,
		Actions: []Action{
			{T: 50, Type: ActionMouth, Target: Left, Shape: MouthSurprise, DurationMs: 100},
		},
	})

	off := e.EvaluateAtMs(Left, 75)
	assert.True(t, off.MouthActive)
	assert.Equal(t, MouthSurprise, off.Mouth)

	off = e.EvaluateAtMs(Left, 400)
	assert.False(t, off.MouthActive)
}
