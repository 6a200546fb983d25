package expr

import "strings"

// glanceDurationMs is the tween length of the opening glance toward
// the listener; awayDurationMs is that of the mid-line glance away.
const (
	glanceDurationMs = 300
	awayDurationMs   = 400
)

// smileWords are a short, hand-picked list of tokens that read as
// positive/affirming in short spoken lines.
var smileWords = []string{"happy", "great", "awesome", "love", "thanks", "haha", "glad"}

// BuildPlan derives a heuristic expression plan from spoken text: an
// opening glance toward the listener, brow/mouth beats keyed off
// terminal punctuation and affect words, and a mid-line glance away.
// This stands in for the scripted/LLM-authored plans the evaluator
// also accepts (Plan's schema does not distinguish the source).
func BuildPlan(character, listener Character, message string, totalMs int) *Plan {
	plan := &Plan{Character: character, Listener: listener, TotalMs: totalMs}
	if totalMs <= 0 {
		return plan
	}

	plan.Actions = append(plan.Actions, Action{
		T: 0, Type: ActionEye, Target: character,
		Look: LookListener, Amount: 1, DurationMs: glanceDurationMs,
	})

	trimmed := strings.TrimSpace(message)
	switch {
	case strings.HasSuffix(trimmed, "?"):
		plan.Actions = append(plan.Actions, Action{
			T: totalMs / 3, Type: ActionBrow, Target: character,
			Emote: BrowSkeptical, Amount: 0.8, DurationMs: min(600, totalMs/2),
		})
	case strings.HasSuffix(trimmed, "!"):
		plan.Actions = append(plan.Actions, Action{
			T: totalMs / 4, Type: ActionBrow, Target: character,
			Emote: BrowFlick, Amount: 1, Count: 2,
		})
		plan.Actions = append(plan.Actions, Action{
			T: totalMs / 4, Type: ActionMouth, Target: character,
			Shape: MouthSurprise, DurationMs: min(800, totalMs/2),
		})
	}

	if hasSmileWord(trimmed) {
		plan.Actions = append(plan.Actions, Action{
			T: totalMs / 2, Type: ActionMouth, Target: character,
			Shape: MouthSmile, DurationMs: min(900, totalMs/2),
		})
	}

	if mid := totalMs * 2 / 3; mid > 0 {
		plan.Actions = append(plan.Actions, Action{
			T: mid, Type: ActionEye, Target: character,
			Look: LookAway, Amount: 0.5, DurationMs: awayDurationMs,
		})
	}

	return plan
}

func hasSmileWord(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range smileWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
