package server

import "time"

// RenderRequest is the decoded multipart form for POST /render.
type RenderRequest struct {
	Character string `json:"character"`
	Message   string `json:"message"`
	Mode      string `json:"mode"`
}

// RenderResponse answers POST /render.
type RenderResponse struct {
	RequestID     string `json:"requestId"`
	StreamURL     string `json:"streamUrl"`
	DurationMs    int64  `json:"durationMs"`
	Queued        bool   `json:"queued"`
	QueuePosition int    `json:"queuePosition,omitempty"`
}

// ErrorResponse is the uniform JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamInfoResponse answers GET /stream-info.
type StreamInfoResponse struct {
	StreamURL      string   `json:"streamUrl"`
	State          string   `json:"state"`
	CurrentSpeaker string   `json:"currentSpeaker,omitempty"`
	QueueDepth     int      `json:"queueDepth"`
	QueuedMessages []string `json:"queuedMessages"`
	EncoderRestarts int64   `json:"encoderRestarts"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status          string         `json:"status"`
	UptimeSeconds   float64        `json:"uptimeSeconds"`
	CommittedState  string         `json:"committedState"`
	CacheSizes      CacheSizesJSON `json:"cacheSizes"`
	EncoderRestarts int64          `json:"encoderRestarts"`
	LogTail         []LogEntryJSON `json:"logTail"`
}

// CacheSizesJSON mirrors compositor.CacheSizes for JSON output.
type CacheSizesJSON struct {
	ExpressionLayer int `json:"expressionLayer"`
	L1              int `json:"l1"`
	L2              int `json:"l2"`
	Output          int `json:"output"`
}

// LogEntryJSON mirrors logging.Entry for JSON output.
type LogEntryJSON struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// PlaybackStartRequest answers POST /playback-start.
type PlaybackStartRequest struct {
	Character string `json:"character"`
}

// LightingRequest controls POST /lighting/*.
type LightingRequest struct {
	On bool `json:"on"`
}

// ExpressionLimitsRequest controls POST /expression/limits.
type ExpressionLimitsRequest struct {
	Character string  `json:"character"`
	EyeMinX   int     `json:"eyeMinX"`
	EyeMaxX   int     `json:"eyeMaxX"`
	EyeMinY   int     `json:"eyeMinY"`
	EyeMaxY   int     `json:"eyeMaxY"`
	RotUp     float64 `json:"rotUp"`
	RotDown   float64 `json:"rotDown"`
}

// TVControlRequest controls POST /tv/*.
type TVControlRequest struct {
	Action string `json:"action"` // play, pause, stop
}

// StatusEvent is one message pushed over the /ws/status feed.
type StatusEvent struct {
	Type      string        `json:"type"` // "log" or "snapshot"
	Log       *LogEntryJSON `json:"log,omitempty"`
	Snapshot  *HealthResponse `json:"snapshot,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
