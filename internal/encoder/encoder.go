// Package encoder drives the single long-running ffmpeg subprocess
// that marries rendered video frames to a resampled PCM audio stream
// into a continuously rolling HLS playlist.
package encoder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Config configures the continuous encoder.
type Config struct {
	FFmpegPath      string
	SegmentDir      string
	SegmentDuration time.Duration
	WindowSize      int
	RestartBackoff  time.Duration
	Width, Height   int
	FPS             int
	SampleRate      int
	Channels        int
}

// Encoder owns one ffmpeg subprocess with a raw-RGB video stdin pipe
// and a raw S16LE PCM audio pipe (passed as an extra file descriptor),
// producing rolling HLS segments. It never restarts during normal
// operation; on unexpected exit it reschedules a restart after a
// fixed backoff while still running.
type Encoder struct {
	cfg Config
	log zerolog.Logger

	mu          sync.Mutex
	cmd         *exec.Cmd
	videoWriter io.WriteCloser
	audioWriter io.WriteCloser
	audioRead   *os.File

	running     atomic.Bool
	lastVideo   []byte
	restartsCnt atomic.Int64
}

// New constructs an Encoder bound to cfg.
func New(cfg Config, log zerolog.Logger) *Encoder {
	return &Encoder{cfg: cfg, log: log}
}

// Start launches the ffmpeg subprocess and begins watching it for
// unexpected exit. Safe to call once; call Stop before a second Start.
func (e *Encoder) Start(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.SegmentDir, 0755); err != nil {
		return fmt.Errorf("create segment dir: %w", err)
	}
	e.running.Store(true)
	return e.spawn(ctx)
}

func (e *Encoder) spawn(ctx context.Context) error {
	audioReadFile, audioWriteFile, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create audio pipe: %w", err)
	}

	args := e.buildArgs()
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath, args...)
	cmd.ExtraFiles = []*os.File{audioReadFile}
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open video stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.mu.Lock()
	e.cmd = cmd
	e.videoWriter = stdin
	e.audioWriter = audioWriteFile
	e.audioRead = audioReadFile
	e.mu.Unlock()

	go e.watch(ctx, cmd)

	e.log.Info().Strs("args", args).Msg("ffmpeg encoder started")
	return nil
}

func (e *Encoder) buildArgs() []string {
	segPattern := filepath.Join(e.cfg.SegmentDir, "segment_%03d.ts")
	playlist := filepath.Join(e.cfg.SegmentDir, "stream.m3u8")

	segSeconds := e.cfg.SegmentDuration.Seconds()
	if segSeconds <= 0 {
		segSeconds = 1
	}
	window := e.cfg.WindowSize
	if window <= 0 {
		window = 6
	}

	return []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", e.cfg.Width, e.cfg.Height),
		"-framerate", strconv.Itoa(e.cfg.FPS),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.cfg.SampleRate),
		"-ac", strconv.Itoa(e.cfg.Channels),
		"-i", "pipe:3",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-crf", "25",
		"-g", strconv.Itoa(e.cfg.FPS),
		"-bf", "0",
		"-vsync", "cfr",
		"-async", "1",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", strconv.FormatFloat(segSeconds, 'f', -1, 64),
		"-hls_list_size", strconv.Itoa(window),
		"-hls_flags", "delete_segments+independent_segments",
		"-hls_segment_filename", segPattern,
		playlist,
	}
}

func (e *Encoder) watch(ctx context.Context, cmd *exec.Cmd) {
	err := cmd.Wait()
	if !e.running.Load() {
		return
	}
	e.log.Warn().Err(err).Msg("ffmpeg encoder exited unexpectedly, scheduling restart")

	backoff := e.cfg.RestartBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	time.AfterFunc(backoff, func() {
		if !e.running.Load() {
			return
		}
		e.restartsCnt.Add(1)
		if err := e.spawn(ctx); err != nil {
			e.log.Error().Err(err).Msg("ffmpeg encoder restart failed")
		}
	})
}

// WriteVideoFrame writes one raw RGB frame and keeps a reference to
// it (not a copy) as the last-emitted buffer; nothing in this package
// reads that buffer back. EPIPE and
// other write errors are dropped, not propagated, to avoid desyncing
// the frame loop on a mid-restart encoder.
func (e *Encoder) WriteVideoFrame(rgb []byte) {
	e.mu.Lock()
	w := e.videoWriter
	e.lastVideo = rgb
	e.mu.Unlock()

	if w == nil {
		return
	}
	if _, err := w.Write(rgb); err != nil {
		e.log.Debug().Err(err).Msg("video pipe write failed, dropping")
	}
}

// WriteAudioFrame writes one PCM chunk to the audio pipe, tolerating
// EPIPE by dropping the write.
func (e *Encoder) WriteAudioFrame(pcm []byte) {
	e.mu.Lock()
	w := e.audioWriter
	e.mu.Unlock()

	if w == nil {
		return
	}
	if _, err := w.Write(pcm); err != nil {
		e.log.Debug().Err(err).Msg("audio pipe write failed, dropping")
	}
}

// Restarts reports how many times the subprocess has been restarted.
func (e *Encoder) Restarts() int64 {
	return e.restartsCnt.Load()
}

// Stop halts the encoder: closes both pipes and waits for the process
// to exit, flushing the final segment.
func (e *Encoder) Stop() error {
	e.running.Store(false)

	e.mu.Lock()
	cmd := e.cmd
	vw := e.videoWriter
	aw := e.audioWriter
	ar := e.audioRead
	e.mu.Unlock()

	if vw != nil {
		vw.Close()
	}
	if aw != nil {
		aw.Close()
	}
	if ar != nil {
		ar.Close()
	}
	if cmd != nil && cmd.Process != nil {
		return cmd.Wait()
	}
	return nil
}
