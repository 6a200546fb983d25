// Package tv implements the in-scene TV sub-compositor: a small
// playlist of pre-sized image/video frames that advances independent
// of the main character compositor.
package tv

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
)

// ItemType discriminates playlist entries.
type ItemType string

const (
	ItemImage ItemType = "image"
	ItemVideo ItemType = "video"
)

// State is the sub-compositor's playback state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Item is one playlist entry, resolved to a pre-sized frame array.
type Item struct {
	Type          ItemType
	Source        string
	Duration      time.Duration
	AudioPath     string
	Frames        []*image.RGBA
	FrameCount    int
	IsStaticImage bool
	Error         error
}

// Compositor owns the playlist, the current position, and frame
// advancement; it never mixes audio itself.
type Compositor struct {
	mu          sync.Mutex
	viewport    image.Rectangle
	fps         int
	items       []*Item
	currentIdx  int
	frameIndex  int
	state       State
	autoAdvance bool

	log zerolog.Logger
}

// New constructs an empty TV compositor sized to viewport at fps.
func New(viewportW, viewportH, fps int, autoAdvance bool, log zerolog.Logger) *Compositor {
	return &Compositor{
		viewport:    image.Rect(0, 0, viewportW, viewportH),
		fps:         fps,
		state:       StateStopped,
		autoAdvance: autoAdvance,
		log:         log,
	}
}

// LoadPlaylistDir loads every image/gif file in dir as a playlist
// item, in directory order. Failures on individual items are recorded
// on the item, not returned, so the rest of the playlist still loads.
func (c *Compositor) LoadPlaylistDir(dir string, defaultHold time.Duration) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read tv playlist dir: %w", err)
	}

	var items []*Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		item := c.loadItem(path, defaultHold)
		items = append(items, item)
	}

	c.mu.Lock()
	c.items = items
	c.currentIdx = 0
	c.frameIndex = 0
	c.mu.Unlock()
	return nil
}

func (c *Compositor) loadItem(path string, defaultHold time.Duration) *Item {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gif":
		return c.loadVideoLikeGIF(path)
	case ".png", ".jpg", ".jpeg":
		return c.loadStaticImage(path, defaultHold)
	default:
		return &Item{Source: path, Error: fmt.Errorf("tv load failed: unsupported extension %s", ext)}
	}
}

func (c *Compositor) loadStaticImage(path string, hold time.Duration) *Item {
	f, err := os.Open(path)
	if err != nil {
		return &Item{Type: ItemImage, Source: path, Error: fmt.Errorf("tv load failed: %w", err)}
	}
	defer f.Close()

	var src image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		src, err = png.Decode(f)
	default:
		src, err = jpeg.Decode(f)
	}
	if err != nil {
		return &Item{Type: ItemImage, Source: path, Error: fmt.Errorf("tv load failed: %w", err)}
	}

	frame := c.containFit(src)
	frameCount := int(hold.Seconds() * float64(c.fps))
	if frameCount < 1 {
		frameCount = c.fps
	}

	return &Item{
		Type:          ItemImage,
		Source:        path,
		Duration:      hold,
		Frames:        []*image.RGBA{frame},
		FrameCount:    frameCount,
		IsStaticImage: true,
	}
}

func (c *Compositor) loadVideoLikeGIF(path string) *Item {
	f, err := os.Open(path)
	if err != nil {
		return &Item{Type: ItemVideo, Source: path, Error: fmt.Errorf("tv load failed: %w", err)}
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return &Item{Type: ItemVideo, Source: path, Error: fmt.Errorf("tv load failed: %w", err)}
	}

	frames := make([]*image.RGBA, 0, len(g.Image))
	for _, img := range g.Image {
		frames = append(frames, c.containFit(img))
	}

	totalDelayMs := 0
	for _, d := range g.Delay {
		totalDelayMs += d * 10
	}

	return &Item{
		Type:       ItemVideo,
		Source:     path,
		Duration:   time.Duration(totalDelayMs) * time.Millisecond,
		Frames:     frames,
		FrameCount: len(frames),
	}
}

// containFit resizes src to fit within the viewport preserving aspect
// ratio, letterboxing with black padding.
func (c *Compositor) containFit(src image.Image) *image.RGBA {
	vb := c.viewport
	dst := image.NewRGBA(image.Rect(0, 0, vb.Dx(), vb.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	sb := src.Bounds()
	scale := minFloat(float64(vb.Dx())/float64(sb.Dx()), float64(vb.Dy())/float64(sb.Dy()))
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	offX := (vb.Dx() - w) / 2
	offY := (vb.Dy() - h) / 2

	target := image.Rect(offX, offY, offX+w, offY+h)
	xdraw.BiLinear.Scale(dst, target, src, sb, xdraw.Over, nil)
	return dst
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Play transitions to the playing state.
func (c *Compositor) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) > 0 {
		c.state = StatePlaying
	}
}

// Pause transitions to the paused state.
func (c *Compositor) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePaused
}

// Stop transitions to the stopped state and resets position.
func (c *Compositor) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStopped
	c.frameIndex = 0
}

// Tick advances frameIndex by one while playing. On reaching the
// current item's frame count, either loops (hold) or advances to the
// next item (auto-advance).
func (c *Compositor) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying || len(c.items) == 0 {
		return
	}

	item := c.currentItemLocked()
	if item == nil || item.Error != nil {
		c.advanceItemLocked()
		return
	}

	c.frameIndex++
	if c.frameIndex >= item.FrameCount {
		if c.autoAdvance {
			c.advanceItemLocked()
		} else {
			c.frameIndex = 0
		}
	}
}

func (c *Compositor) advanceItemLocked() {
	c.frameIndex = 0
	if len(c.items) == 0 {
		return
	}
	c.currentIdx = (c.currentIdx + 1) % len(c.items)
}

func (c *Compositor) currentItemLocked() *Item {
	if len(c.items) == 0 {
		return nil
	}
	return c.items[c.currentIdx]
}

// GetCurrentFrame returns the active item's current frame, or nil if
// stopped, empty, or the current item failed to load.
func (c *Compositor) GetCurrentFrame() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return nil
	}
	item := c.currentItemLocked()
	if item == nil || item.Error != nil || len(item.Frames) == 0 {
		return nil
	}

	idx := c.frameIndex
	if idx >= len(item.Frames) {
		idx = len(item.Frames) - 1
	}
	return item.Frames[idx]
}

// CurrentAudioPath returns the extracted audio path for the active
// item, for the outer orchestrator to play; this package never mixes
// audio itself.
func (c *Compositor) CurrentAudioPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.currentItemLocked()
	if item == nil {
		return ""
	}
	return item.AudioPath
}

// FrameIndex returns the current frame index within the active item.
func (c *Compositor) FrameIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameIndex
}

// State returns the current playback state.
func (c *Compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
