package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanOpensWithListenerGlance(t *testing.T) {
	plan := BuildPlan(Left, Right, "hello there", 3000)
	require.NotEmpty(t, plan.Actions)
	first := plan.Actions[0]
	assert.Equal(t, ActionEye, first.Type)
	assert.Equal(t, LookListener, first.Look)
	assert.Equal(t, 0, first.T)
}

func TestBuildPlanQuestionAddsSkepticalBrow(t *testing.T) {
	plan := BuildPlan(Left, Right, "are you sure?", 3000)
	found := false
	for _, a := range plan.Actions {
		if a.Type == ActionBrow && a.Emote == BrowSkeptical {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildPlanExclamationAddsFlickAndSurprise(t *testing.T) {
	plan := BuildPlan(Left, Right, "watch out!", 3000)
	var sawFlick, sawSurprise bool
	for _, a := range plan.Actions {
		if a.Type == ActionBrow && a.Emote == BrowFlick {
			sawFlick = true
		}
		if a.Type == ActionMouth && a.Shape == MouthSurprise {
			sawSurprise = true
		}
	}
	assert.True(t, sawFlick)
	assert.True(t, sawSurprise)
}

func TestBuildPlanSmileWordAddsMouthSmile(t *testing.T) {
	plan := BuildPlan(Left, Right, "thanks so much", 3000)
	found := false
	for _, a := range plan.Actions {
		if a.Type == ActionMouth && a.Shape == MouthSmile {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildPlanZeroDurationProducesNoActions(t *testing.T) {
	plan := BuildPlan(Left, Right, "hello", 0)
	assert.Empty(t, plan.Actions)
}
