// Package lipsync implements the real-time energy-based phoneme
// analyzer that drives mouth animation from raw audio samples.
package lipsync

import (
	"math"
	"sort"
)

// Phoneme is the visual mouth category the analyzer emits.
type Phoneme string

const (
	PhonemeA Phoneme = "A"
	PhonemeB Phoneme = "B"
	PhonemeC Phoneme = "C"
	PhonemeD Phoneme = "D"
	PhonemeE Phoneme = "E"
	PhonemeF Phoneme = "F"
	PhonemeG Phoneme = "G"
	PhonemeH Phoneme = "H"
)

const (
	analysisMultiplier = 6
	energyHistoryLen   = 10
	minHoldFrames      = 1
	fHoldMaxFrames     = 2
)

var phonemePriority = map[Phoneme]int{
	PhonemeA: 0, PhonemeB: 1, PhonemeF: 2, PhonemeG: 2,
	PhonemeE: 3, PhonemeC: 4, PhonemeH: 4, PhonemeD: 5,
}

// Thresholds holds the adaptive classification boundaries.
type Thresholds struct {
	Silence     float64
	Low         float64
	Medium      float64
	High        float64
	FricativeZcr float64
}

// DefaultThresholds returns conservative, uncalibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Silence:      0.01,
		Low:          0.03,
		Medium:       0.08,
		High:         0.15,
		FricativeZcr: 0.25,
	}
}

// Analyzer is the stateful per-clip lip-sync engine. Not safe for
// concurrent use; one instance is owned exclusively by a playback.
type Analyzer struct {
	thresholds Thresholds
	energyHist []float64
	lastPhon   Phoneme
	holdFrames int
	fHoldLeft  int
}

// New constructs an analyzer with uncalibrated default thresholds.
func New() *Analyzer {
	return &Analyzer{
		thresholds: DefaultThresholds(),
		lastPhon:   PhonemeA,
	}
}

// Calibrate derives thresholds from the first second of samples (or
// whatever is passed) per the documented percentile formula. If no
// sub-window RMS exceeds 0.001, defaults are kept.
func (a *Analyzer) Calibrate(samples []float32, sampleRate int) {
	windowLen := sampleRate / 30 / analysisMultiplier
	if windowLen < 8 {
		windowLen = 8
	}

	var rmsValues []float64
	for i := 0; i+windowLen <= len(samples); i += windowLen {
		r := rms(samples[i : i+windowLen])
		if r > 0.001 {
			rmsValues = append(rmsValues, r)
		}
	}
	if len(rmsValues) == 0 {
		return
	}
	sort.Float64s(rmsValues)

	p10 := percentile(rmsValues, 0.10)
	p50 := percentile(rmsValues, 0.50)
	p75 := percentile(rmsValues, 0.75)
	p90 := percentile(rmsValues, 0.90)

	a.thresholds = Thresholds{
		Silence:      p10 * 0.5,
		Low:          p50 * 0.8,
		Medium:       p75 * 0.9,
		High:         p90 * 0.9,
		FricativeZcr: DefaultThresholds().FricativeZcr,
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Reset clears rolling history and the last emitted phoneme.
func (a *Analyzer) Reset() {
	a.energyHist = nil
	a.lastPhon = PhonemeA
	a.holdFrames = 0
	a.fHoldLeft = 0
}

// Analyze classifies one frame's worth of samples (samplesPerFrame)
// into a phoneme code, dividing the window into overlapping
// sub-windows and applying the smoothing/hold rules across calls.
func (a *Analyzer) Analyze(frame []float32) Phoneme {
	n := len(frame)
	if n == 0 {
		return a.commit(PhonemeA)
	}

	subLen := (n * 2) / (analysisMultiplier + 1)
	if subLen < 4 {
		subLen = n
	}
	stride := subLen / 2
	if stride < 1 {
		stride = 1
	}

	type candidate struct {
		ph    Phoneme
		score float64
	}
	var best candidate
	haveBest := false

	for start := 0; start+subLen <= n+stride && start < n; start += stride {
		end := start + subLen
		if end > n {
			end = n
		}
		sub := frame[start:end]
		if len(sub) == 0 {
			continue
		}

		r := rms(sub)
		z := zcr(sub)
		pk := peak(sub)

		a.pushEnergy(r)
		ph := a.classify(r, z, pk)

		score := float64(phonemePriority[ph]) + math.Min(1, r/nonZero(a.thresholds.High))
		if !haveBest || score > best.score {
			best = candidate{ph: ph, score: score}
			haveBest = true
		}

		if end >= n {
			break
		}
	}

	if !haveBest {
		return a.commit(PhonemeA)
	}
	return a.smooth(best.ph)
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1e-9
	}
	return v
}

func (a *Analyzer) pushEnergy(r float64) {
	a.energyHist = append(a.energyHist, r)
	if len(a.energyHist) > energyHistoryLen {
		a.energyHist = a.energyHist[len(a.energyHist)-energyHistoryLen:]
	}
}

func (a *Analyzer) avgEnergy() float64 {
	if len(a.energyHist) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range a.energyHist {
		sum += v
	}
	return sum / float64(len(a.energyHist))
}

func (a *Analyzer) classify(r, z, pk float64) Phoneme {
	t := a.thresholds
	switch {
	case r < t.Silence:
		if pk > 3*t.Silence {
			return PhonemeB
		}
		return PhonemeA
	case r < t.Low:
		return PhonemeB
	case z > t.FricativeZcr && r > 0.7*t.Medium:
		return PhonemeF
	case r > 1.3*t.High:
		return PhonemeD
	case r > t.High && z < 0.15:
		return PhonemeC
	case r > t.Medium:
		if z > 0.12 {
			return PhonemeC
		}
		return PhonemeE
	case r > t.Low:
		return PhonemeB
	default:
		return PhonemeA
	}
}

func (a *Analyzer) smooth(candidate Phoneme) Phoneme {
	if a.lastPhon == PhonemeF && candidate != PhonemeF {
		if a.fHoldLeft > 0 {
			a.fHoldLeft--
			return a.commitNoReset(PhonemeF)
		}
	}
	if candidate == PhonemeF {
		a.fHoldLeft = fHoldMaxFrames
	}

	if candidate == a.lastPhon {
		a.holdFrames = 0
		return a.commit(candidate)
	}

	if a.holdFrames < minHoldFrames {
		a.holdFrames++
		return a.commitNoReset(a.lastPhon)
	}

	a.holdFrames = 0
	return a.commit(candidate)
}

func (a *Analyzer) commit(ph Phoneme) Phoneme {
	a.lastPhon = ph
	return ph
}

func (a *Analyzer) commitNoReset(ph Phoneme) Phoneme {
	return ph
}

func rms(samples []float32) float64 {
	sum := 0.0
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func zcr(samples []float32) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if sign(samples[i]) != sign(samples[i-1]) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples))
}

func peak(samples []float32) float64 {
	p := 0.0
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > p {
			p = v
		}
	}
	return p
}

func sign(v float32) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
