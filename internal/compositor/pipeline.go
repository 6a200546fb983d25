package compositor

import (
	"image"
	"sync"
	"time"

	"github.com/normanking/cortexstream/internal/blink"
	"github.com/normanking/cortexstream/internal/expr"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/lipsync"
	"github.com/normanking/cortexstream/internal/playback"
	"github.com/normanking/cortexstream/internal/tv"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// expressionOffsetThrottle: written-back quantized offsets are only
// applied to the live expression state every Nth frame.
const expressionOffsetThrottle = 3

// MaxSkipCompositingFrames bounds how many frames in a row may repeat
// the last buffer after a composite blowout.
const MaxSkipCompositingFrames = 3

// Engine wires the layer store, static base, every cache level, the
// expression/blink/lip-sync/TV subsystems, and the committed-base
// state machine into the per-tick FramePipeline.
type Engine struct {
	Store      *layers.Store
	StaticBase *layers.StaticBase
	ExprCache  *ExpressionLayerCache
	L1         *L1Cache
	L2         *L2Cache
	Output     *OutputCache

	Evaluator   *expr.Evaluator
	limits      map[expr.Character]expr.Limits
	BlinkLeft   *blink.Controller
	BlinkRight  *blink.Controller
	Playback    *playback.SyncedPlayback
	TV          *tv.Compositor

	fps            int
	composeWorkers int
	frameBudget    time.Duration

	lightingVersion atomic.Uint64
	committed       *committedBase

	mu                    sync.Mutex
	lightsOn              bool
	lastOutputKey         string
	lastOutputFrame       []byte
	skipCompositingFrames int
	caption               string
	captionUntil          time.Time
	lastExprOffset        map[expr.Character]expr.Offset
	exprStartFrame        int

	log zerolog.Logger
}

// NewEngine constructs an Engine bound to an already-loaded store.
func NewEngine(store *layers.Store, fps, composeWorkers int, log zerolog.Logger) *Engine {
	vpW, vpH := store.TVViewport.W, store.TVViewport.H
	if vpW <= 0 {
		vpW = 320
	}
	if vpH <= 0 {
		vpH = 240
	}

	e := &Engine{
		Store:          store,
		StaticBase:     layers.NewStaticBase(store),
		ExprCache:      NewExpressionLayerCache(),
		L1:             NewL1Cache(),
		L2:             NewL2Cache(),
		Output:         NewOutputCache(),
		Evaluator:      expr.NewEvaluator(),
		limits:         map[expr.Character]expr.Limits{expr.Left: expr.DefaultLimits(), expr.Right: expr.DefaultLimits()},
		BlinkLeft:      blink.New(fps, 1),
		BlinkRight:     blink.New(fps, 2),
		Playback:       playback.New(),
		TV:             tv.New(vpW, vpH, fps, true, log),
		fps:            fps,
		composeWorkers: composeWorkers,
		frameBudget:    time.Second / time.Duration(fps),
		committed:      newCommittedBase(),
		lastExprOffset: map[expr.Character]expr.Offset{},
		log:            log,
	}
	e.StaticBase.Rebuild()
	return e
}

// SetLimits installs per-character travel bounds.
func (e *Engine) SetLimits(limits map[expr.Character]expr.Limits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for c, l := range limits {
		e.limits[c] = l
		e.Evaluator.SetLimits(c, l)
	}
}

// AllLimits returns a copy of the currently installed per-character
// travel bounds, for callers that opportunistically persist them.
func (e *Engine) AllLimits() map[expr.Character]expr.Limits {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[expr.Character]expr.Limits, len(e.limits))
	for c, l := range e.limits {
		out[c] = l
	}
	return out
}

// SetCaption installs a caption string to be shown until expiry.
func (e *Engine) SetCaption(text string, expiry time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caption = text
	e.captionUntil = expiry
}

// SetLightsOn toggles the lights-on overlay.
func (e *Engine) SetLightsOn(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lightsOn = on
}

// RebuildStaticBase rebuilds the static base, bumping its version and
// clearing L1/L2/fast-path/committed tracking per the invalidation
// rules of the cache contract.
func (e *Engine) RebuildStaticBase() {
	e.StaticBase.Rebuild()
	e.L1.Clear()
	e.L2.Clear()
	e.committed.invalidate()
	e.mu.Lock()
	e.lastOutputKey = ""
	e.mu.Unlock()
}

// BumpLightingVersion bumps the lighting version; relies on key
// mismatch to invalidate L2/Output naturally.
func (e *Engine) BumpLightingVersion() uint64 {
	v := e.lightingVersion.Add(1)
	e.mu.Lock()
	e.lastOutputKey = ""
	e.mu.Unlock()
	return v
}

// BeginSpeaking notifies the committed-base state machine that a
// character has started speaking.
func (e *Engine) BeginSpeaking() { e.committed.beginSpeaking() }

// EndSpeaking notifies the committed-base state machine that playback
// has ended, returning to Idle, and resets the expression evaluator so
// held offsets re-center rather than freezing at the plan's last pose.
func (e *Engine) EndSpeaking() {
	e.committed.endSpeaking()
	e.Evaluator.Reset()
	e.mu.Lock()
	e.lastExprOffset = map[expr.Character]expr.Offset{}
	e.mu.Unlock()
}

// LoadExpressionPlan compiles plan into the evaluator's tracks and
// records startFrame as the plan's zero point, so later Tick calls can
// evaluate the plan relative to when speaking began rather than the
// stream's absolute wall clock.
func (e *Engine) LoadExpressionPlan(plan *expr.Plan, startFrame int) {
	e.Evaluator.LoadPlan(plan)
	e.mu.Lock()
	e.exprStartFrame = startFrame
	e.mu.Unlock()
}

// CommittedState reports the current committed-base state.
func (e *Engine) CommittedState() CommittedState { return e.committed.Snapshot() }

// TickResult is the outcome of one FramePipeline.Tick call.
type TickResult struct {
	Frame      []byte
	Skipped    bool
	OutputKey  string
	LeftPh     lipsync.Phoneme
	RightPh    lipsync.Phoneme
}

// Tick is the per-frame orchestrator described in §4.9: it resolves
// speaker/phoneme, updates expression and blink state, advances the
// TV sub-compositor, computes cache keys, and traverses the four-level
// cache, degrading gracefully under a composite budget overrun.
func (e *Engine) Tick(frameNum int, speaking bool, speaker layers.Character, leftPh, rightPh lipsync.Phoneme) (*TickResult, error) {
	start := time.Now()

	e.mu.Lock()
	skip := e.skipCompositingFrames
	e.mu.Unlock()

	if skip > 0 {
		e.mu.Lock()
		e.skipCompositingFrames--
		frame := e.lastOutputFrame
		key := e.lastOutputKey
		e.mu.Unlock()
		e.TV.Tick()
		return &TickResult{Frame: frame, Skipped: true, OutputKey: key, LeftPh: leftPh, RightPh: rightPh}, nil
	}

	if frameNum%expressionOffsetThrottle == 0 {
		e.applyExpressionOffsets(frameNum)
	}

	leftBlink := e.BlinkLeft.Update(frameNum, speaking && speaker == layers.CharLeft)
	rightBlink := e.BlinkRight.Update(frameNum, speaking && speaker == layers.CharRight)

	e.TV.Tick()
	tvFrame := e.TV.GetCurrentFrame()
	tvIdx := e.TV.FrameIndex()

	e.mu.Lock()
	caption := ""
	if time.Now().Before(e.captionUntil) {
		caption = e.caption
	}
	lightsOn := e.lightsOn
	e.mu.Unlock()

	left := e.lastOffset(expr.Left)
	right := e.lastOffset(expr.Right)
	exprDigest := ExprDigest(left, right)
	l1Key := L1Key(e.StaticBase.Version(), exprDigest)
	l2Key := L2Key(l1Key, e.lightingVersion.Load(), string(leftPh), string(rightPh), leftBlink, rightBlink)
	outputKey := OutputKey(l2Key, tvIdx, CaptionDigest(caption))

	e.mu.Lock()
	if outputKey == e.lastOutputKey && e.lastOutputFrame != nil {
		frame := e.lastOutputFrame
		e.mu.Unlock()
		return &TickResult{Frame: frame, OutputKey: outputKey, LeftPh: leftPh, RightPh: rightPh}, nil
	}
	e.mu.Unlock()

	frame, usedL1Key, err := e.traverseCache(l1Key, exprDigest, left, right, l2Key, leftPh, rightPh, leftBlink, rightBlink, lightsOn, outputKey, tvFrame, caption, speaking, speaker)
	if err != nil {
		return nil, err
	}
	// A fallback L1 served this frame: record the key the frame was
	// actually built from, so the fast path above does not keep
	// returning the fallback once the requested L1 is ready.
	if usedL1Key != l1Key {
		outputKey = OutputKey(L2Key(usedL1Key, e.lightingVersion.Load(), string(leftPh), string(rightPh), leftBlink, rightBlink), tvIdx, CaptionDigest(caption))
	}

	e.mu.Lock()
	e.lastOutputFrame = frame
	e.lastOutputKey = outputKey
	e.mu.Unlock()

	elapsed := time.Since(start)
	if elapsed > e.frameBudget {
		ratio := float64(elapsed) / float64(e.frameBudget)
		n := int(ratio+0.999) - 1
		if n > MaxSkipCompositingFrames {
			n = MaxSkipCompositingFrames
		}
		if n > 0 {
			e.mu.Lock()
			e.skipCompositingFrames = n
			e.mu.Unlock()
			if ratio > 1.5 {
				e.log.Warn().Dur("elapsed", elapsed).Dur("budget", e.frameBudget).Msg("composite over budget")
			}
		}
	}

	return &TickResult{Frame: frame, OutputKey: outputKey, LeftPh: leftPh, RightPh: rightPh}, nil
}

func (e *Engine) lastOffset(c expr.Character) expr.Offset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastExprOffset[c]
}

func (e *Engine) applyExpressionOffsets(frameNum int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := frameNum - e.exprStartFrame
	if elapsed < 0 {
		elapsed = 0
	}
	planMs := int(float64(elapsed) / float64(e.fps) * 1000)
	for _, c := range []expr.Character{expr.Left, expr.Right} {
		off := e.Evaluator.EvaluateAtMs(c, planMs)
		e.lastExprOffset[c] = off
	}
}

// traverseCache implements the L1 miss policy and committed-base
// protocol of §4.3: on L1 miss it starts a background build and uses
// the committed/last fallback for the current frame, then builds
// L2/Output against whatever L1 key was actually used.
func (e *Engine) traverseCache(l1Key, exprDigest string, left, right expr.Offset, l2Key string, leftPh, rightPh lipsync.Phoneme, leftBlink, rightBlink, lightsOn bool, outputKey string, tvFrame *image.RGBA, caption string, speaking bool, speaker layers.Character) ([]byte, string, error) {
	l1, ok := e.L1.get(l1Key)
	usedKey := l1Key

	if !ok {
		e.startL1Build(l1Key, left, right, speaking, speaker)

		fallbackKey, fallbackL1 := e.committed.fallback()
		if fallbackL1 != nil {
			l1 = fallbackL1
			usedKey = fallbackKey
		} else {
			// First frame ever: no choice but to build synchronously.
			built := BuildL1(e.Store, e.ExprCache, e.StaticBase.Current(), left, right, e.limits, e.composeWorkers)
			e.L1.put(l1Key, built)
			e.committed.recordLast(l1Key, built)
			l1 = built
			usedKey = l1Key
		}
		l2Key = L2Key(usedKey, e.lightingVersion.Load(), string(leftPh), string(rightPh), leftBlink, rightBlink)
		outputKey = OutputKey(l2Key, e.TV.FrameIndex(), CaptionDigest(caption))
	}

	l2Bytes, ok := e.L2.get(l2Key)
	if !ok {
		var err error
		l2Bytes, err = BuildL2(e.Store, l1, string(leftPh), string(rightPh), leftBlink, rightBlink, lightsOn, e.StaticBase.EmissionBlendMode())
		if err != nil {
			return nil, usedKey, err
		}
		e.L2.put(l2Key, l2Bytes)
	}

	outBytes, ok := e.Output.get(outputKey)
	if !ok {
		var reflBuf *image.RGBA
		var reflX, reflY int
		if refl := e.Store.TVReflection; refl != nil {
			reflBuf, reflX, reflY = refl.Buffer, refl.X, refl.Y
		}
		var err error
		outBytes, err = BuildOutput(l2Bytes, tvFrame, e.Store.TVViewport.ToImageRect(), reflBuf, reflX, reflY, caption)
		if err != nil {
			return nil, usedKey, err
		}
		e.Output.put(outputKey, outBytes)
	}

	return outBytes, usedKey, nil
}

// startL1Build kicks off a background build for key if one is not
// already in flight, deduplicating by key. On success it records the
// result as the last-known L1 and, when a speaker is active, schedules
// a pre-warm before the build becomes committed.
func (e *Engine) startL1Build(key string, left, right expr.Offset, speaking bool, speaker layers.Character) {
	if !e.committed.markInFlight(key) {
		return
	}

	go func() {
		defer e.committed.clearInFlight(key)

		built := BuildL1(e.Store, e.ExprCache, e.StaticBase.Current(), left, right, e.limits, e.composeWorkers)
		e.L1.put(key, built)
		e.committed.recordLast(key, built)

		if speaking {
			e.preWarm(key, built, speaker)
		}
	}()
}

// preWarm composites the six common phonemes (A..F) for the speaker
// against the non-speaker held at A, blink=false, and the current
// lighting, then swaps the committed base on success. Errors are
// logged, never fatal; the committed base simply isn't swapped.
//
// The phoneme varies on speaker's own side and the other character is
// held at neutral, matching the live (leftPh, rightPh) pairs Tick will
// actually compute for this speaker — keying both sides the same way
// regardless of who's speaking would never hit on L2 for the right
// character.
func (e *Engine) preWarm(l1Key string, l1 *L1Frame, speaker layers.Character) {
	e.mu.Lock()
	lightsOn := e.lightsOn
	e.mu.Unlock()

	phonemes := []string{"A", "B", "C", "D", "E", "F"}
	for _, ph := range phonemes {
		leftPh, rightPh := ph, "A"
		if speaker == layers.CharRight {
			leftPh, rightPh = "A", ph
		}
		l2Key := L2Key(l1Key, e.lightingVersion.Load(), leftPh, rightPh, false, false)
		if _, ok := e.L2.get(l2Key); ok {
			continue
		}
		bytes, err := BuildL2(e.Store, l1, leftPh, rightPh, false, false, lightsOn, e.StaticBase.EmissionBlendMode())
		if err != nil {
			e.log.Warn().Err(err).Str("phoneme", ph).Msg("pre-warm failed")
			continue
		}
		e.L2.put(l2Key, bytes)
	}

	e.committed.commitPrewarmed(l1Key, l1)
}

// CacheSizes reports the current entry counts of every level, used by
// /health and the status feed.
type CacheSizes struct {
	ExpressionLayer int
	L1              int
	L2              int
	Output          int
}

// Sizes returns the current cache sizes.
func (e *Engine) Sizes() CacheSizes {
	return CacheSizes{
		ExpressionLayer: e.ExprCache.Len(),
		L1:              e.L1.Len(),
		L2:              e.L2.Len(),
		Output:          e.Output.Len(),
	}
}
