package expr

import "sort"

// keyframe is one target value on a piecewise-linear scalar track.
type keyframe struct {
	T         int
	TargetVal float64
	TweenMs   int
}

// scalarTrack is a sorted sequence of keyframes lerped over time.
type scalarTrack struct {
	frames []keyframe
}

func (tr *scalarTrack) push(t int, target float64, tweenMs int) {
	tr.frames = append(tr.frames, keyframe{T: t, TargetVal: target, TweenMs: tweenMs})
}

func (tr *scalarTrack) sort() {
	sort.SliceStable(tr.frames, func(i, j int) bool { return tr.frames[i].T < tr.frames[j].T })
}

// valueAt evaluates the track at ms t: find the last keyframe with
// T <= t, lerp from the previous keyframe's target toward the current
// one over TweenMs.
func (tr *scalarTrack) valueAt(t int) float64 {
	if len(tr.frames) == 0 {
		return 0
	}

	idx := -1
	for i, kf := range tr.frames {
		if kf.T <= t {
			idx = i
		} else {
			break
		}
	}
	if idx < 0 {
		return 0
	}

	kf := tr.frames[idx]
	var prevVal float64
	if idx > 0 {
		prevVal = tr.frames[idx-1].TargetVal
	}

	if kf.TweenMs <= 0 {
		return kf.TargetVal
	}
	elapsed := t - kf.T
	if elapsed >= kf.TweenMs {
		return kf.TargetVal
	}
	frac := float64(elapsed) / float64(kf.TweenMs)
	return prevVal + (kf.TargetVal-prevVal)*frac
}

// mouthInterval is one held mouth shape over [T, T+DurationMs].
type mouthInterval struct {
	T          int
	Shape      MouthShape
	DurationMs int
}

type mouthTrack struct {
	intervals []mouthInterval
}

func (mt *mouthTrack) push(t int, shape MouthShape, durationMs int) {
	mt.intervals = append(mt.intervals, mouthInterval{T: t, Shape: shape, DurationMs: durationMs})
}

func (mt *mouthTrack) sort() {
	sort.SliceStable(mt.intervals, func(i, j int) bool { return mt.intervals[i].T < mt.intervals[j].T })
}

// activeAt returns the last interval whose [T, T+Duration] contains t,
// or (false) if none does.
func (mt *mouthTrack) activeAt(t int) (MouthShape, bool) {
	var result MouthShape
	found := false
	for _, iv := range mt.intervals {
		if t >= iv.T && t <= iv.T+iv.DurationMs {
			result = iv.Shape
			found = true
		}
	}
	return result, found
}

// characterTracks bundles all tracks for one character.
type characterTracks struct {
	eyeX      scalarTrack
	eyeY      scalarTrack
	browY     scalarTrack
	browAsymL scalarTrack
	browAsymR scalarTrack
	mouth     mouthTrack
}

func (ct *characterTracks) sortAll() {
	ct.eyeX.sort()
	ct.eyeY.sort()
	ct.browY.sort()
	ct.browAsymL.sort()
	ct.browAsymR.sort()
	ct.mouth.sort()
}
