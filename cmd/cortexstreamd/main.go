// Command cortexstreamd runs the animated-character livestreaming
// engine: the layered compositor, lip-sync analyzer, TV sub-compositor,
// and continuous HLS encoder, fronted by an HTTP control API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/normanking/cortexstream/internal/compositor"
	"github.com/normanking/cortexstream/internal/config"
	"github.com/normanking/cortexstream/internal/encoder"
	"github.com/normanking/cortexstream/internal/expr"
	"github.com/normanking/cortexstream/internal/layers"
	"github.com/normanking/cortexstream/internal/logging"
	"github.com/normanking/cortexstream/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgManifest string
	cfgLayers   string
	cfgLimits   string
	cfgAddr     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cortexstreamd",
		Short: "cortexstreamd runs the cortexstream livestreaming engine",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the compositor, encoder, and HTTP control API",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&cfgManifest, "manifest", "", "layer manifest path (overrides config)")
	serveCmd.Flags().StringVar(&cfgLayers, "layers-dir", "", "layer assets directory (overrides config)")
	serveCmd.Flags().StringVar(&cfgLimits, "limits", "", "expression limits path (overrides config)")
	serveCmd.Flags().StringVar(&cfgAddr, "addr", ":9400", "HTTP listen address")

	viper.BindPFlag("layers.manifest_path", serveCmd.Flags().Lookup("manifest"))
	viper.BindPFlag("layers.layers_dir", serveCmd.Flags().Lookup("layers-dir"))
	viper.BindPFlag("layers.limits_path", serveCmd.Flags().Lookup("limits"))

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logging.New(nil)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Close()

	log.Info("main", "cortexstream starting", nil)

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config", "failed to load config, using defaults", map[string]any{"error": err.Error()})
		cfg = config.DefaultConfig()
	}
	if cfgManifest != "" {
		cfg.Layers.ManifestPath = cfgManifest
	}
	if cfgLayers != "" {
		cfg.Layers.LayersDir = cfgLayers
	}
	if cfgLimits != "" {
		cfg.Layers.LimitsPath = cfgLimits
	}

	store, err := layers.Load(cfg.Layers.ManifestPath, cfg.Layers.LayersDir, cfg.Layers.OutputScale, log.Component("layers"))
	if err != nil {
		return fmt.Errorf("load layer store: %w", err)
	}
	log.Info("layers", "layer store loaded", map[string]any{"count": len(store.Ordered)})

	engine := compositor.NewEngine(store, cfg.Stream.FPS, cfg.Encoder.CompositeWorkers, log.Component("compositor"))

	if cfg.Layers.LimitsPath != "" {
		if savedLimits, err := expr.LoadLimits(cfg.Layers.LimitsPath); err != nil {
			log.Warn("expression-limits", "failed to load limits file, using defaults", map[string]any{"error": err.Error()})
		} else if savedLimits != nil {
			engine.SetLimits(savedLimits)
		}
	}

	if cfg.TV.PlaylistDir != "" {
		if err := engine.TV.LoadPlaylistDir(cfg.TV.PlaylistDir, cfg.TV.DefaultHoldDur); err != nil {
			log.Warn("tv", "failed to load tv playlist", map[string]any{"error": err.Error()})
		} else {
			engine.TV.Play()
		}
	}

	enc := encoder.New(encoder.Config{
		FFmpegPath:      cfg.Encoder.FFmpegPath,
		SegmentDir:      cfg.Encoder.SegmentDir,
		SegmentDuration: cfg.Encoder.SegmentDuration,
		WindowSize:      cfg.Encoder.WindowSize,
		RestartBackoff:  cfg.Encoder.RestartBackoff,
		Width:           store.OutputWidth,
		Height:          store.OutputHeight,
		FPS:             cfg.Stream.FPS,
		SampleRate:      cfg.Audio.OutputSampleRate,
		Channels:        cfg.Audio.Channels,
	}, log.Component("encoder"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := enc.Start(ctx); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}

	srv := server.New(cfg, log, engine, enc)

	httpSrv := &http.Server{
		Addr:    cfgAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("http", "listening", map[string]any{"addr": cfgAddr})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http", "listen failed", err, nil)
		}
	}()

	go srv.Run(ctx)

	<-ctx.Done()
	log.Info("main", "shutdown signal received, draining encoder", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)

	if err := enc.Stop(); err != nil {
		log.Warn("encoder", "stop reported error", map[string]any{"error": err.Error()})
	}

	log.Info("main", "cortexstream stopped", nil)
	return nil
}
