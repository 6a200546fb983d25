package e2e

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/normanking/cortexstream/internal/compositor"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/lipsync"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 120
	testHeight = 90
)

func writePNG(t *testing.T, path string, w, h int, fill color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// buildTestStore assembles a minimal manifest covering the static,
// emission, eye, brow, mouth, blink, lights, mask and reflection layer
// kinds (no expression-cover or nose layers), so every level of the
// four-level cache pipeline is exercised end to end.
func buildTestStore(t *testing.T) *layers.Store {
	t.Helper()
	dir := t.TempDir()
	layersDir := filepath.Join(dir, "layers")
	require.NoError(t, os.MkdirAll(layersDir, 0755))

	type entry struct {
		id, file, kind, character, phoneme string
		x, y, w, h, z                      int
	}

	entries := []entry{
		{"bg", "bg.png", "static", "", "", 0, 0, testWidth, testHeight, 0},
		{"emission", "emission.png", "emission", "", "", 0, 0, testWidth, testHeight, 1},
		{"emission_fg", "emission_fg.png", "emission-fg", "", "", 0, 0, testWidth, testHeight, 2},
		{"eye_left", "eye_left.png", "expression-eye", "left", "", 20, 20, 10, 10, 5},
		{"eye_right", "eye_right.png", "expression-eye", "right", "", 80, 20, 10, 10, 5},
		{"brow_left", "brow_left.png", "expression-brow", "left", "", 20, 10, 14, 6, 6},
		{"mouth_left_a", "mouth_left_a.png", "mouth", "left", "A", 20, 50, 14, 8, 7},
		{"mouth_right_a", "mouth_right_a.png", "mouth", "right", "A", 80, 50, 14, 8, 7},
		{"blink_left", "blink_left.png", "blink", "left", "", 20, 20, 10, 10, 8},
		{"lights", "lights.png", "lights-on", "", "", 0, 0, testWidth, testHeight, 9},
		{"mask", "mask.png", "mask", "", "", 10, 10, 30, 20, 10},
		{"reflection", "reflection.png", "tv-reflection", "", "", 10, 60, 30, 20, 11},
	}

	var manifestLayers []layers.ManifestLayer
	for _, e := range entries {
		writePNG(t, filepath.Join(layersDir, e.file), e.w, e.h, color.RGBA{100, 150, 200, 255})
		manifestLayers = append(manifestLayers, layers.ManifestLayer{
			ID: e.id, Path: e.file, Type: e.kind, Character: e.character, Phoneme: e.phoneme,
			X: e.x, Y: e.y, Width: e.w, Height: e.h, ZIndex: e.z,
		})
	}

	manifest := struct {
		Width  int                    `json:"width"`
		Height int                    `json:"height"`
		Layers []layers.ManifestLayer `json:"layers"`
	}{Width: testWidth, Height: testHeight, Layers: manifestLayers}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, data, 0644))

	store, err := layers.Load(manifestPath, layersDir, 1.0, zerolog.Nop())
	require.NoError(t, err)
	return store
}

// TestIdleStartupProducesAFrame covers the idle-startup scenario: the
// first tick, with nobody speaking, must still produce an output frame
// via the synchronous first-build fallback.
func TestIdleStartupProducesAFrame(t *testing.T) {
	store := buildTestStore(t)
	engine := compositor.NewEngine(store, 30, 2, zerolog.Nop())

	result, err := engine.Tick(0, false, layers.CharLeft, lipsync.PhonemeA, lipsync.PhonemeA)
	require.NoError(t, err)
	require.NotEmpty(t, result.Frame)
}

// TestBackToBackClips covers two consecutive spoken clips: begin
// speaking, emit a few frames with changing phonemes, end speaking,
// then immediately begin a second clip from the other character.
func TestBackToBackClips(t *testing.T) {
	store := buildTestStore(t)
	engine := compositor.NewEngine(store, 30, 2, zerolog.Nop())

	engine.BeginSpeaking()
	phonemes := []lipsync.Phoneme{lipsync.PhonemeA, lipsync.PhonemeB, lipsync.PhonemeC, lipsync.PhonemeA}
	frameNum := 0
	for _, ph := range phonemes {
		result, err := engine.Tick(frameNum, true, layers.CharLeft, ph, lipsync.PhonemeA)
		require.NoError(t, err)
		require.NotEmpty(t, result.Frame)
		frameNum++
	}
	engine.EndSpeaking()
	require.Equal(t, compositor.StateIdle, engine.CommittedState())

	engine.BeginSpeaking()
	for _, ph := range phonemes {
		result, err := engine.Tick(frameNum, true, layers.CharRight, lipsync.PhonemeA, ph)
		require.NoError(t, err)
		require.NotEmpty(t, result.Frame)
		frameNum++
	}
	engine.EndSpeaking()
}

// TestLightingToggleInvalidatesOutput covers the lighting hue step
// scenario: bumping the lighting version must change the computed
// output key for an otherwise identical frame.
func TestLightingToggleInvalidatesOutput(t *testing.T) {
	store := buildTestStore(t)
	engine := compositor.NewEngine(store, 30, 2, zerolog.Nop())

	before, err := engine.Tick(0, false, layers.CharLeft, lipsync.PhonemeA, lipsync.PhonemeA)
	require.NoError(t, err)

	engine.SetLightsOn(true)
	engine.BumpLightingVersion()

	after, err := engine.Tick(1, false, layers.CharLeft, lipsync.PhonemeA, lipsync.PhonemeA)
	require.NoError(t, err)

	require.NotEqual(t, before.OutputKey, after.OutputKey)
}

// TestTVPlaybackAdvancesIndependently covers TV playback: with a
// one-item playlist loaded, the sub-compositor advances its own frame
// counter once per tick regardless of character speaking state.
func TestTVPlaybackAdvancesIndependently(t *testing.T) {
	store := buildTestStore(t)
	engine := compositor.NewEngine(store, 30, 2, zerolog.Nop())

	tvDir := t.TempDir()
	writePNG(t, filepath.Join(tvDir, "slide.png"), 40, 30, color.RGBA{10, 20, 30, 255})
	require.NoError(t, engine.TV.LoadPlaylistDir(tvDir, time.Second))
	engine.TV.Play()

	for i := 0; i < 5; i++ {
		_, err := engine.Tick(i, i%2 == 1, layers.CharLeft, lipsync.PhonemeA, lipsync.PhonemeA)
		require.NoError(t, err)
	}
	require.Equal(t, 5, engine.TV.FrameIndex())
}

// TestCompositeBlowoutDegradesGracefully covers the composite blowout
// scenario indirectly: Tick must never error across many consecutive
// speaking frames that cycle through eight phonemes, so the first pass
// misses the L2/Output caches and later passes may hit them.
func TestCompositeBlowoutDegradesGracefully(t *testing.T) {
	store := buildTestStore(t)
	engine := compositor.NewEngine(store, 30, 2, zerolog.Nop())

	phonemes := []lipsync.Phoneme{
		lipsync.PhonemeA, lipsync.PhonemeB, lipsync.PhonemeC, lipsync.PhonemeD,
		lipsync.PhonemeE, lipsync.PhonemeF, lipsync.PhonemeG, lipsync.PhonemeH,
	}
	engine.BeginSpeaking()
	for i := 0; i < len(phonemes)*3; i++ {
		ph := phonemes[i%len(phonemes)]
		result, err := engine.Tick(i, true, layers.CharLeft, ph, lipsync.PhonemeA)
		require.NoError(t, err)
		require.NotNil(t, result)
	}
}
