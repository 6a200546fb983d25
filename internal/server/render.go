package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/playback"
)

const maxUploadBytes = 32 << 20 // 32MiB

// handleRender accepts a multipart form with an "audio" file part plus
// "character", "message", and "mode" fields, decodes the audio to mono
// 16kHz, enqueues it for playback, and answers with the stream URL the
// caller should already be watching.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	character := r.FormValue("character")
	if character != string(layers.CharLeft) && character != string(layers.CharRight) {
		writeError(w, http.StatusBadRequest, "character must be \"left\" or \"right\"")
		return
	}
	message := r.FormValue("message")
	mode := r.FormValue("mode")
	if mode == "" {
		mode = "direct"
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file part")
		return
	}
	defer file.Close()

	samples, err := DecodeToMono16k(file)
	if err != nil {
		s.log.Error("render", "audio decode failed", err, map[string]any{"filename": header.Filename, "requestId": requestID})
		writeError(w, http.StatusUnprocessableEntity, "audio decode failed")
		return
	}

	duration := time.Duration(float64(len(samples))/float64(targetSampleRate)*1000) * time.Millisecond
	clip := &playback.Clip{
		Samples:    samples,
		SampleRate: targetSampleRate,
		Duration:   duration,
		Character:  character,
		Caption:    message,
	}

	// direct mode preempts: drop anything pending and stop whatever is
	// currently active so the frame loop picks this clip up on its next
	// tick. router mode queues behind an active-or-pending clip and
	// only starts immediately when the engine is otherwise idle.
	var position int
	var queued bool
	if mode == "direct" {
		position = s.Queue.Replace(clip)
		s.Engine.Playback.Clear()
		queued = false
	} else {
		active := s.Engine.Playback.IsPlaying()
		position = s.Queue.Push(clip)
		queued = active || position > 1
	}

	s.log.Info("render", "clip enqueued", map[string]any{
		"requestId": requestID,
		"character": character,
		"mode":      mode,
		"queuePos":  position,
	})

	writeJSON(w, http.StatusAccepted, RenderResponse{
		RequestID:     requestID,
		StreamURL:     "/hls/stream.m3u8",
		DurationMs:    duration.Milliseconds(),
		Queued:        queued,
		QueuePosition: position,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
