package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/normanking/cortexstream/internal/expr"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/logging"
	"github.com/normanking/cortexstream/internal/playback"
	"github.com/samber/lo"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildHealth())
}

func (s *Server) buildHealth() *HealthResponse {
	sizes := s.Engine.Sizes()
	return &HealthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		CommittedState: string(s.Engine.CommittedState()),
		CacheSizes: CacheSizesJSON{
			ExpressionLayer: sizes.ExpressionLayer,
			L1:              sizes.L1,
			L2:              sizes.L2,
			Output:          sizes.Output,
		},
		EncoderRestarts: s.Encoder.Restarts(),
		LogTail:         s.logTail(20),
	}
}

func (s *Server) logTail(n int) []LogEntryJSON {
	entries := s.log.History(n)
	return lo.Map(entries, func(e logging.Entry, _ int) LogEntryJSON {
		return LogEntryJSON{Timestamp: e.Timestamp, Level: e.Level, Component: e.Component, Message: e.Message}
	})
}

func (s *Server) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	speaker := s.speaker()
	queueSnapshot := s.Queue.Snapshot()

	messages := lo.Map(queueSnapshot, func(c *playback.Clip, _ int) string {
		return c.Caption
	})

	state := "idle"
	if speaker != "" {
		state = "speaking"
	}

	writeJSON(w, http.StatusOK, StreamInfoResponse{
		StreamURL:       "/hls/stream.m3u8",
		State:           state,
		CurrentSpeaker:  string(speaker),
		QueueDepth:      len(queueSnapshot),
		QueuedMessages:  messages,
		EncoderRestarts: s.Encoder.Restarts(),
	})
}

func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	var req PlaybackStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var speaker layers.Character
	switch req.Character {
	case string(layers.CharLeft):
		speaker = layers.CharLeft
	case string(layers.CharRight):
		speaker = layers.CharRight
	default:
		writeError(w, http.StatusBadRequest, "character must be \"left\" or \"right\"")
		return
	}

	s.Engine.BeginSpeaking()
	s.mu.Lock()
	s.currentSpeaker = speaker
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleLightingOn(w http.ResponseWriter, r *http.Request) {
	s.Engine.SetLightsOn(true)
	s.Engine.BumpLightingVersion()
	writeJSON(w, http.StatusOK, map[string]bool{"on": true})
}

func (s *Server) handleLightingOff(w http.ResponseWriter, r *http.Request) {
	s.Engine.SetLightsOn(false)
	s.Engine.BumpLightingVersion()
	writeJSON(w, http.StatusOK, map[string]bool{"on": false})
}

func (s *Server) handleExpressionLimits(w http.ResponseWriter, r *http.Request) {
	var req ExpressionLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var c expr.Character
	switch req.Character {
	case string(expr.Right):
		c = expr.Right
	default:
		c = expr.Left
	}

	limits := expr.Limits{
		Eyes: expr.AxisLimits{
			MinX: req.EyeMinX, MaxX: req.EyeMaxX,
			MinY: req.EyeMinY, MaxY: req.EyeMaxY,
		},
		Eyebrows: expr.AxisLimits{
			RotUp: req.RotUp, RotDown: req.RotDown,
		},
	}
	s.Engine.SetLimits(map[expr.Character]expr.Limits{c: limits})

	if s.cfg.Layers.LimitsPath != "" {
		if err := expr.SaveLimits(s.cfg.Layers.LimitsPath, s.Engine.AllLimits()); err != nil {
			s.log.Warn("expression-limits", "opportunistic save failed", map[string]any{"error": err.Error()})
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleTVControl(w http.ResponseWriter, r *http.Request) {
	var req TVControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	switch req.Action {
	case "play":
		s.Engine.TV.Play()
	case "pause":
		s.Engine.TV.Pause()
	case "stop":
		s.Engine.TV.Stop()
	default:
		writeError(w, http.StatusBadRequest, "action must be play, pause, or stop")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.Engine.TV.State())})
}
