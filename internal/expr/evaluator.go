package expr

// flickUpMs and flickDownMs are the hold durations of one up/down pair
// in a brow "flick" gesture.
const (
	flickUpMs      = 120
	flickDownMs    = 140
	browTweenMs    = 200
	asymTweenMs    = 80
)

// Evaluator compiles a Plan into per-character piecewise-linear tracks
// and answers point-in-time queries against them.
type Evaluator struct {
	limits map[Character]Limits
	tracks map[Character]*characterTracks
	plan   *Plan
}

// NewEvaluator constructs an evaluator with no plan loaded; Offset
// queries return the zero value until LoadPlan is called.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		limits: make(map[Character]Limits),
		tracks: make(map[Character]*characterTracks),
	}
}

// SetLimits installs the travel bounds for one character; falls back
// to DefaultLimits if never called.
func (e *Evaluator) SetLimits(c Character, l Limits) {
	e.limits[c] = l
}

// Reset drops the loaded plan; EvaluateAtMs returns the zero Offset
// for every character until LoadPlan is called again.
func (e *Evaluator) Reset() {
	e.plan = nil
	e.tracks = make(map[Character]*characterTracks)
}

func (e *Evaluator) limitsFor(c Character) Limits {
	if l, ok := e.limits[c]; ok {
		return l
	}
	return DefaultLimits()
}

// LoadPlan compiles plan's actions into tracks, appends a return-to-
// neutral keyframe at plan.TotalMs for every track of every known
// character, and sorts each track.
func (e *Evaluator) LoadPlan(plan *Plan) {
	e.plan = plan
	e.tracks = map[Character]*characterTracks{
		Left:  {},
		Right: {},
	}

	for _, a := range plan.Actions {
		ct := e.tracks[a.Target]
		if ct == nil {
			ct = &characterTracks{}
			e.tracks[a.Target] = ct
		}
		e.compileAction(ct, a, plan)
	}

	for char, ct := range e.tracks {
		e.appendNeutral(ct, plan.TotalMs, char)
		ct.sortAll()
	}
}

func (e *Evaluator) compileAction(ct *characterTracks, a Action, plan *Plan) {
	switch a.Type {
	case ActionEye:
		lim := e.limitsFor(a.Target)
		dx, dy := resolveEyeLook(a.Look, a.Target, plan.Listener, lim.Eyes, a.Amount)
		ct.eyeX.push(a.T, float64(dx), a.DurationMs)
		ct.eyeY.push(a.T, float64(dy), a.DurationMs)

	case ActionBrow:
		lim := e.limitsFor(a.Target)
		switch a.Emote {
		case BrowRaise:
			ct.browY.push(a.T, lim.Eyebrows.RotUp*a.Amount, 0)
			ct.browY.push(a.T+a.DurationMs, 0, browTweenMs)
		case BrowFrown:
			ct.browY.push(a.T, -lim.Eyebrows.RotDown*a.Amount, 0)
			ct.browY.push(a.T+a.DurationMs, 0, browTweenMs)
		case BrowFlick:
			t := a.T
			count := a.Count
			if count <= 0 {
				count = 1
			}
			for i := 0; i < count; i++ {
				ct.browY.push(t, lim.Eyebrows.RotUp*a.Amount, 0)
				t += flickUpMs
				ct.browY.push(t, 0, flickDownMs)
				t += flickDownMs
			}
		case BrowSkeptical, BrowSkepticalLeft, BrowAsymUpLeft:
			ct.browAsymL.push(a.T, lim.Eyebrows.RotUp*a.Amount, asymTweenMs)
			ct.browAsymL.push(a.T+a.DurationMs, 0, asymTweenMs)
		case BrowSkepticalRight, BrowAsymUpRight:
			ct.browAsymR.push(a.T, lim.Eyebrows.RotUp*a.Amount, asymTweenMs)
			ct.browAsymR.push(a.T+a.DurationMs, 0, asymTweenMs)
		}

	case ActionMouth:
		ct.mouth.push(a.T, a.Shape, a.DurationMs)
	}
}

func (e *Evaluator) appendNeutral(ct *characterTracks, totalMs int, char Character) {
	ct.eyeX.push(totalMs, 0, browTweenMs)
	ct.eyeY.push(totalMs, 0, browTweenMs)
	ct.browY.push(totalMs, 0, browTweenMs)
	ct.browAsymL.push(totalMs, 0, asymTweenMs)
	ct.browAsymR.push(totalMs, 0, asymTweenMs)
}

// EvaluateAtMs returns the quantized offset for character at ms t.
func (e *Evaluator) EvaluateAtMs(char Character, t int) Offset {
	ct := e.tracks[char]
	if ct == nil {
		return Offset{}
	}

	eyeX := QuantizeEye(roundHalf(ct.eyeX.valueAt(t)))
	eyeY := QuantizeEye(roundHalf(ct.eyeY.valueAt(t)))
	browY := QuantizeBrowOrZero(roundHalf(ct.browY.valueAt(t)))
	asymL := QuantizeBrowOrZero(roundHalf(ct.browAsymL.valueAt(t)))
	asymR := QuantizeBrowOrZero(roundHalf(ct.browAsymR.valueAt(t)))

	off := Offset{
		EyeX:         eyeX,
		EyeY:         eyeY,
		BrowY:        browY,
		BrowAsymL:    asymL,
		BrowAsymRVal: asymR,
	}
	if shape, ok := ct.mouth.activeAt(t); ok {
		off.Mouth = shape
		off.MouthActive = true
	}
	return off
}

// QuantizeBrowOrZero quantizes to the nearest 2px step, preserving 0
// as the true rest value.
func QuantizeBrowOrZero(v int) int {
	if v == 0 {
		return 0
	}
	return QuantizeBrow(v)
}

// resolveEyeLook maps a look direction to a pixel offset target,
// scaled by the configured range and the action's amount in [0,1].
func resolveEyeLook(look EyeLook, char, listener Character, rng AxisLimits, amount float64) (int, int) {
	mirror := 1
	if char == Right {
		mirror = -1
	}

	switch look {
	case LookListener:
		if char == listener {
			return 0, 0
		}
		return int(float64(rng.MaxX) * amount * float64(mirror) * 0.5), 0
	case LookAway:
		return int(float64(rng.MinX) * amount * float64(mirror)), 0
	case LookDown:
		return 0, int(float64(rng.MaxY) * amount)
	case LookUp:
		return 0, int(float64(rng.MinY) * amount)
	case LookLeft:
		return int(float64(rng.MinX) * amount), 0
	case LookRight:
		return int(float64(rng.MaxX) * amount), 0
	case LookUpLeft:
		return int(float64(rng.MinX) * amount), int(float64(rng.MinY) * amount)
	case LookUpRight:
		return int(float64(rng.MaxX) * amount), int(float64(rng.MinY) * amount)
	default:
		return 0, 0
	}
}
