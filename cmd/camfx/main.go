package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/camfx/config"
	"github.com/opd-ai/camfx/media"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/opd-ai/camfx/preview"
	"github.com/opd-ai/camfx/screen"
	"github.com/opd-ai/camfx/segment"
	"github.com/opd-ai/camfx/settings"
	"github.com/opd-ai/camfx/sprite"
	"github.com/sirupsen/logrus"
)

// CLIConfig holds the command-line flags.
type CLIConfig struct {
	configPath string
	filter     string
	logLevel   string
	screen     string
	noPreview  bool
	help       bool
}

// parseCLIFlags parses args into a CLIConfig.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cli := &CLIConfig{}
	fs.StringVar(&cli.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&cli.filter, "filter", "", "Initial filter tag (overrides config)")
	fs.StringVar(&cli.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	fs.StringVar(&cli.screen, "screen", "pattern", "Screen share source: pattern or portal")
	fs.BoolVar(&cli.noPreview, "no-preview", false, "Disable the preview server")
	fs.BoolVar(&cli.help, "help", false, "Show help message")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cli, nil
}

// printUsage prints the usage information.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "camfx: webcam filter pipeline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s [options]\n", fs.Name())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Filters:")
	for _, m := range pipeline.Modes() {
		fmt.Fprintf(w, "  %-22s %s\n", m.String(), m.Kind())
	}
}

// applyCLIOverrides layers flags over the loaded configuration.
func applyCLIOverrides(cfg *config.Config, cli *CLIConfig) error {
	if cli.filter != "" {
		cfg.Filter.Default = cli.filter
	}
	if cli.logLevel != "" {
		cfg.Log.Level = cli.logLevel
	}
	if cli.noPreview {
		cfg.Preview.Enabled = false
	}
	if cli.screen != "pattern" && cli.screen != "portal" {
		return fmt.Errorf("%w: screen source %q", config.ErrInvalid, cli.screen)
	}
	return cfg.Validate()
}

// app is the wired pipeline.
type app struct {
	cfg         *config.Config
	store       *settings.Store
	interceptor *media.Interceptor
	preview     *preview.Server
}

// newApp builds every component from cfg.
func newApp(cfg *config.Config, screenSource string) (*app, error) {
	key, err := segment.ParseKeyColor(cfg.Segmentation.KeyColor)
	if err != nil {
		return nil, err
	}

	var provider screen.Provider = screen.NewPatternProvider(cfg.Capture.Width, cfg.Capture.Height)
	if screenSource == "portal" {
		provider = screen.NewPortalProvider(syntheticStream)
	}

	pc := &pipeline.Context{
		Segmenter: segment.NewAdapter(segment.NewKeyLoader(key, cfg.Segmentation.Tolerance), cfg.SegmentOptions()),
		Share:     screen.NewShare(provider),
		NewRenderer: func() sprite.Renderer {
			return sprite.NewOldFilm(sprite.DefaultOldFilmParams(), nil)
		},
		MatrixCellSize: cfg.Render.MatrixCellSize,
		Stats:          pipeline.NewStats(),
	}
	pc.Stats.EnableDetailedLogging(cfg.Render.DetailedStats)

	camera := media.NewPatternCamera()
	camera.Backdrop = cfg.Segmentation.KeyColor

	icpt := media.NewInterceptor(camera, pc, media.InterceptorOptions{
		Width:  cfg.Capture.Width,
		Height: cfg.Capture.Height,
		Loop:   pipeline.Options{FrameRate: cfg.Render.FrameRate},
	})

	a := &app{
		cfg:         cfg,
		store:       settings.NewStore(cfg.Filter.Default),
		interceptor: icpt,
	}
	if cfg.Preview.Enabled {
		a.preview = preview.New(preview.Options{Addr: cfg.Preview.Addr, MaxWidth: cfg.Preview.MaxWidth}, a.store, func() any {
			return icpt.Loop().Metrics()
		})
	}
	return a, nil
}

// syntheticStream stands in for PipeWire decoding: the portal grants the
// stream and a pattern of the granted size is shown.
func syntheticStream(ctx context.Context, fd int, stream screen.PortalStream) (screen.Capture, error) {
	_ = os.NewFile(uintptr(fd), "pipewire-remote").Close()
	w, h := int(stream.Size[0]), int(stream.Size[1])
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	return screen.NewPatternProvider(w, h).Start(ctx)
}

// run acquires the substituted stream and serves it until ctx is done or
// the stream ends.
func (a *app) run(ctx context.Context) error {
	defer a.interceptor.Close()

	go a.interceptor.Loop().Follow(ctx, a.store, a.store)

	stream, err := a.interceptor.GetUserMedia(ctx, media.Constraints{
		Audio: true,
		Video: &media.VideoConstraints{},
	})
	if err != nil {
		return fmt.Errorf("acquire camera: %w", err)
	}
	defer stream.Stop()

	logrus.WithFields(logrus.Fields{
		"function":  "app.run",
		"stream_id": stream.ID,
		"filter":    a.cfg.Filter.Default,
	}).Info("Pipeline running")

	if a.preview == nil {
		select {
		case <-ctx.Done():
		case <-a.interceptor.Loop().Done():
		}
		return a.interceptor.Err()
	}

	video := stream.VideoTracks()
	if len(video) == 0 {
		return media.ErrNoVideo
	}
	return a.preview.Run(ctx, video[0])
}

// setupSignalHandling cancels ctx on SIGINT or SIGTERM.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Info("Shutting down")
		cancel()
	}()
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cli, err := parseCLIFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cli.help {
		printUsage(os.Stdout, fs)
		os.Exit(0)
	}

	cfg, err := config.Load(cli.configPath)
	if err == nil {
		err = applyCLIOverrides(cfg, cli)
	}
	if err == nil {
		err = cfg.ConfigureLogging()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	a, err := newApp(cfg, cli.screen)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Fatal("Failed to build pipeline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := a.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("camfx stopped with an error")
		os.Exit(1)
	}
}
