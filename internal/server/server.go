// Package server exposes the HTTP/WebSocket control surface over the
// compositor engine, playback queue, and continuous encoder, and owns
// the frame loop that ties them together.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/normanking/cortexstream/internal/compositor"
	"github.com/normanking/cortexstream/internal/config"
	"github.com/normanking/cortexstream/internal/encoder"
	"github.com/normanking/cortexstream/internal/expr"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/lipsync"
	"github.com/normanking/cortexstream/internal/logging"
	"github.com/normanking/cortexstream/internal/playback"
)

// Server wires the engine, encoder, and playback queue to an HTTP API
// and owns the real-time frame loop that drives them.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	Engine  *compositor.Engine
	Encoder *encoder.Encoder
	Queue   *playback.Queue
	hub     *statusHub
	router  chi.Router

	startTime time.Time

	mu                   sync.Mutex
	currentSpeaker       layers.Character
	activeClipPCM        []byte
	activeClipStartFrame int
}

// New constructs a Server bound to an already-initialized engine,
// encoder, and config, and builds its HTTP route table.
func New(cfg *config.Config, log *logging.Logger, engine *compositor.Engine, enc *encoder.Encoder) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		Engine:    engine,
		Encoder:   enc,
		Queue:     playback.NewQueue(),
		hub:       newStatusHub(log.Component("status-hub")),
		startTime: time.Now(),
	}
	s.router = s.buildRoutes()

	log.SetOnLog(func(e logging.Entry) {
		s.hub.broadcast(StatusEvent{
			Type: "log",
			Log: &LogEntryJSON{
				Timestamp: e.Timestamp,
				Level:     e.Level,
				Component: e.Component,
				Message:   e.Message,
			},
			Timestamp: time.Now(),
		})
	})

	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", s.handleHealth)
	r.Get("/stream-info", s.handleStreamInfo)
	r.Post("/render", s.handleRender)
	r.Post("/playback-start", s.handlePlaybackStart)
	r.Post("/lighting/on", s.handleLightingOn)
	r.Post("/lighting/off", s.handleLightingOff)
	r.Post("/expression/limits", s.handleExpressionLimits)
	r.Post("/tv/control", s.handleTVControl)
	r.Get("/ws/status", s.hub.serveWS)

	if s.cfg.Encoder.SegmentDir != "" {
		fs := http.FileServer(http.Dir(s.cfg.Encoder.SegmentDir))
		r.Handle("/hls/*", http.StripPrefix("/hls/", fs))
	}

	return r
}

// Run starts the real-time frame loop and blocks until ctx is
// cancelled. The encoder must already be started by the caller.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Stream.FPS))
	defer ticker.Stop()

	snapshotTicker := time.NewTicker(2 * time.Second)
	defer snapshotTicker.Stop()

	frameNum := 0
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.C:
			s.hub.broadcast(StatusEvent{Type: "snapshot", Snapshot: s.buildHealth(), Timestamp: time.Now()})
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			s.tickOnce(frameNum, dt)
			frameNum++
		}
	}
}

func (s *Server) tickOnce(frameNum int, dt time.Duration) {
	speaking := s.Engine.Playback.IsPlaying()

	if !speaking {
		s.mu.Lock()
		s.currentSpeaker = ""
		s.mu.Unlock()
		if clip := s.Queue.Pop(); clip != nil {
			s.startClip(clip, frameNum)
			speaking = true
		}
	}

	speaker := s.speaker()
	leftPh, rightPh := lipsync.PhonemeA, lipsync.PhonemeA
	if speaking {
		ph := s.Engine.Playback.TickByWallClock(dt)
		if speaker == layers.CharLeft {
			leftPh = ph
		} else {
			rightPh = ph
		}
		if !s.Engine.Playback.IsPlaying() {
			s.Engine.EndSpeaking()
		}
	}

	result, err := s.Engine.Tick(frameNum, speaking, speaker, leftPh, rightPh)
	if err != nil {
		s.log.Error("frame-loop", "tick failed", err, nil)
		return
	}
	// Skipped ticks carry the last emitted frame; it is re-sent so the
	// video and audio pipes stay in lockstep.
	if s.Encoder == nil {
		return
	}

	rgb, _, _, err := encoder.JPEGToRGB24(result.Frame)
	if err != nil {
		s.log.Error("frame-loop", "frame decode failed", err, nil)
		return
	}
	s.Encoder.WriteVideoFrame(rgb)
	s.Encoder.WriteAudioFrame(s.nextAudioWindow(frameNum))
}

// nextAudioWindow returns the next PCM window for the encoder's audio
// pipe: a slice of the current clip's whole-clip resample (computed
// once in startClip), or silence when idle.
func (s *Server) nextAudioWindow(frameNum int) []byte {
	s.mu.Lock()
	pcm := s.activeClipPCM
	start := s.activeClipStartFrame
	s.mu.Unlock()

	bpf := encoder.BytesPerFrame(s.cfg.Audio.OutputSampleRate, s.cfg.Stream.FPS)
	if pcm == nil {
		return make([]byte, bpf)
	}
	return encoder.FrameWindow(pcm, frameNum-start, s.cfg.Audio.OutputSampleRate, s.cfg.Stream.FPS)
}

func (s *Server) startClip(clip *playback.Clip, frameNum int) {
	var speaker layers.Character
	if clip.Character == string(layers.CharRight) {
		speaker = layers.CharRight
	} else {
		speaker = layers.CharLeft
	}

	outputRate := s.cfg.Audio.OutputSampleRate
	fps := s.cfg.Stream.FPS
	samplesPerFrame := outputRate / fps
	outputFrames := int(clip.Duration.Seconds()*float64(fps)) + 1
	resampled := encoder.Resample(clip.Samples, clip.SampleRate, outputRate, samplesPerFrame, outputFrames)

	s.mu.Lock()
	s.currentSpeaker = speaker
	s.activeClipPCM = encoder.PCMBytes(resampled)
	s.activeClipStartFrame = frameNum
	s.mu.Unlock()

	s.Engine.Playback.Load(clip)
	s.Engine.BeginSpeaking()
	if clip.Caption != "" {
		s.Engine.SetCaption(clip.Caption, time.Now().Add(clip.Duration))
	}

	exprChar := expr.Left
	exprListener := expr.Right
	if speaker == layers.CharRight {
		exprChar, exprListener = expr.Right, expr.Left
	}
	totalMs := int(clip.Duration.Milliseconds())
	plan := expr.BuildPlan(exprChar, exprListener, clip.Caption, totalMs)
	s.Engine.LoadExpressionPlan(plan, frameNum)
}

func (s *Server) speaker() layers.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSpeaker
}
