// Package playback owns the currently speaking audio clip and drives
// the lip-sync analyzer per frame, independent of the output stream's
// own frame clock.
package playback

import (
	"sync"
	"time"

	"github.com/normanking/cortexstream/internal/lipsync"
)

// LipSyncFPS is the fixed rate at which the analyzer's internal clock
// advances, independent of STREAM_FPS.
const LipSyncFPS = 30

// Clip is a fully decoded mono audio clip owned exclusively by a
// SyncedPlayback for its lifetime.
type Clip struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
	Character  string
	Caption    string
}

// SamplesPerFrame returns the per-frame window stride for this clip at
// the lip-sync rate.
func (c *Clip) SamplesPerFrame() int {
	return c.SampleRate / LipSyncFPS
}

// FrameCount returns the number of whole lip-sync frames in the clip.
func (c *Clip) FrameCount() int {
	spf := c.SamplesPerFrame()
	if spf == 0 {
		return 0
	}
	return len(c.Samples) / spf
}

// SyncedPlayback owns the active clip, tracks playback progress, and
// answers per-frame phoneme queries by driving a lipsync.Analyzer.
type SyncedPlayback struct {
	mu           sync.Mutex
	clip         *Clip
	analyzer     *lipsync.Analyzer
	currentFrame int
	accumMs      float64
	playing      bool
}

// New constructs an idle SyncedPlayback.
func New() *SyncedPlayback {
	return &SyncedPlayback{analyzer: lipsync.New()}
}

// Load installs a new clip as active, resets playback position, and
// calibrates the analyzer on the clip's own samples.
func (p *SyncedPlayback) Load(clip *Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clip = clip
	p.currentFrame = 0
	p.accumMs = 0
	p.playing = true
	p.analyzer.Reset()
	p.analyzer.Calibrate(clip.Samples, clip.SampleRate)
}

// Clear releases the current clip.
func (p *SyncedPlayback) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clip = nil
	p.playing = false
	p.currentFrame = 0
	p.accumMs = 0
}

// IsPlaying reports whether a clip is active and not yet exhausted.
func (p *SyncedPlayback) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && p.clip != nil
}

// Character returns the active clip's speaker, or "" if idle.
func (p *SyncedPlayback) Character() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clip == nil {
		return ""
	}
	return p.clip.Character
}


// GetPhonemeAtFrame slices the clip at frame f and runs the analyzer
// on it; the analyzer remains stateful across calls.
func (p *SyncedPlayback) GetPhonemeAtFrame(f int) lipsync.Phoneme {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil {
		return lipsync.PhonemeA
	}

	spf := p.clip.SamplesPerFrame()
	start := f * spf
	if start >= len(p.clip.Samples) {
		p.playing = false
		return lipsync.PhonemeA
	}
	end := start + spf
	if end > len(p.clip.Samples) {
		end = len(p.clip.Samples)
	}

	ph := p.analyzer.Analyze(p.clip.Samples[start:end])
	if end >= len(p.clip.Samples) {
		p.playing = false
	}
	return ph
}

// TickByWallClock accumulates elapsed milliseconds and advances the
// analyzer by whole LipSyncFPS frames only, decoupling the lip-sync
// clock from the stream's own frame cadence. Returns the phoneme for
// whichever frame was most recently consumed.
func (p *SyncedPlayback) TickByWallClock(dt time.Duration) lipsync.Phoneme {
	p.mu.Lock()
	msPerFrame := 1000.0 / float64(LipSyncFPS)
	p.accumMs += float64(dt.Milliseconds())
	advanced := 0
	for p.accumMs >= msPerFrame {
		p.accumMs -= msPerFrame
		advanced++
	}
	frame := p.currentFrame
	p.currentFrame += advanced
	clip := p.clip
	p.mu.Unlock()

	if clip == nil || advanced == 0 {
		return lipsync.PhonemeA
	}
	return p.GetPhonemeAtFrame(frame + advanced - 1)
}

// CurrentFrame returns the playback's lip-sync frame counter.
func (p *SyncedPlayback) CurrentFrame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentFrame
}

// Queue is a FIFO of clips pending playback, mutated only by the
// frame loop and the /render handler.
type Queue struct {
	mu    sync.Mutex
	items []*Clip
}

// NewQueue constructs an empty pending-clip queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a clip and returns its 1-based position in the queue.
func (q *Queue) Push(clip *Clip) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, clip)
	return len(q.items)
}

// Replace drops every pending clip and installs clip as the sole
// queued item, for direct-mode /render requests that preempt whatever
// is queued (but not whatever is already playing — callers must also
// clear the active SyncedPlayback to preempt immediately).
func (q *Queue) Replace(clip *Clip) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = []*Clip{clip}
	return 1
}

// Pop removes and returns the oldest queued clip, or nil if empty.
func (q *Queue) Pop() *Clip {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	clip := q.items[0]
	q.items = q.items[1:]
	return clip
}

// Len reports the number of pending clips.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the currently pending clips in order,
// for read-only reporting endpoints.
func (q *Queue) Snapshot() []*Clip {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Clip, len(q.items))
	copy(out, q.items)
	return out
}
