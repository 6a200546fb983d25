// Package config provides configuration management for cortexstream.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Stream  StreamConfig  `mapstructure:"stream"`
	Layers  LayersConfig  `mapstructure:"layers"`
	Encoder EncoderConfig `mapstructure:"encoder"`
	Audio   AudioConfig   `mapstructure:"audio"`
	TV      TVConfig      `mapstructure:"tv"`
}

// StreamConfig configures the streaming mode and HTTP listener.
//
// Mode and LipSyncMode are read from config/env but only one value of
// each is currently implemented at runtime: "synced" (one ffmpeg
// process fed by separate video and audio pipes) and "realtime" (live RMS/ZCR phoneme
// analysis). "separate" and "rhubarb" are recognized values reserved
// with no runtime path (independent encoding / precomputed visemes); see
// DESIGN.md.
type StreamConfig struct {
	Mode          string `mapstructure:"mode"`         // "synced" or "separate"
	FPS           int    `mapstructure:"fps"`
	LipSyncMode   string `mapstructure:"lipsync_mode"` // "realtime" or "rhubarb"
	AnimationHost string `mapstructure:"animation_host"`
	AnimationPort int    `mapstructure:"animation_port"`
}

// LayersConfig configures layer asset loading and the static compositing base.
// Output dimensions are derived from the loaded manifest × OutputScale
// (see layers.Store), not configured directly here.
type LayersConfig struct {
	ManifestPath string  `mapstructure:"manifest_path"`
	LayersDir    string  `mapstructure:"layers_dir"`
	LimitsPath   string  `mapstructure:"limits_path"`
	OutputScale  float64 `mapstructure:"output_scale"`
}

// EncoderConfig configures the continuous ffmpeg-backed HLS encoder.
type EncoderConfig struct {
	FFmpegPath        string        `mapstructure:"ffmpeg_path"`
	SegmentDir        string        `mapstructure:"segment_dir"`
	SegmentDuration   time.Duration `mapstructure:"segment_duration"`
	WindowSize        int           `mapstructure:"window_size"`
	RestartBackoff    time.Duration `mapstructure:"restart_backoff"`
	CompositeWorkers  int           `mapstructure:"composite_workers"`
}

// AudioConfig configures input/output sample rates for lip-sync and encoding.
type AudioConfig struct {
	InputSampleRate  int `mapstructure:"input_sample_rate"`
	OutputSampleRate int `mapstructure:"output_sample_rate"`
	Channels         int `mapstructure:"channels"`
}

// TVConfig configures the in-frame TV sub-compositor.
type TVConfig struct {
	PlaylistDir    string        `mapstructure:"playlist_dir"`
	DefaultHoldDur time.Duration `mapstructure:"default_hold_duration"`
	AutoAdvance    bool          `mapstructure:"auto_advance"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConfig{
			Mode:          "synced",
			FPS:           30,
			LipSyncMode:   "realtime",
			AnimationHost: "0.0.0.0",
			AnimationPort: 9400,
		},
		Layers: LayersConfig{
			ManifestPath: "./assets/manifest.json",
			LayersDir:    "./assets/layers",
			LimitsPath:   "./assets/expression_limits.json",
			OutputScale:  1.0,
		},
		Encoder: EncoderConfig{
			FFmpegPath:       "ffmpeg",
			SegmentDir:       "./out/hls",
			SegmentDuration:  4 * time.Second,
			WindowSize:       5,
			RestartBackoff:   1 * time.Second,
			CompositeWorkers: 4,
		},
		Audio: AudioConfig{
			InputSampleRate:  48000,
			OutputSampleRate: 44100,
			Channels:         2,
		},
		TV: TVConfig{
			PlaylistDir:    "./assets/tv",
			DefaultHoldDur: 8 * time.Second,
			AutoAdvance:    true,
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".cortexstream")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CORTEXSTREAM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file.
func Save(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(homeDir, ".cortexstream")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("stream", cfg.Stream)
	viper.Set("layers", cfg.Layers)
	viper.Set("encoder", cfg.Encoder)
	viper.Set("audio", cfg.Audio)
	viper.Set("tv", cfg.TV)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexstream"), nil
}
