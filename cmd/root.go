package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"FaceOverlay/capture"
	"FaceOverlay/config"
	"FaceOverlay/engine/remote"
	"FaceOverlay/engine/rpc"
	"FaceOverlay/engine/yunet"
	iface "FaceOverlay/interface"
	"FaceOverlay/logger"
	"FaceOverlay/monitor"
	"FaceOverlay/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.1.0"

var (
	cfgPath     string
	flagModel   string
	flagSource  string
	flagBackend string
	flagAddress string
	headless    bool
	debug       bool
)

var rootCmd = &cobra.Command{
	Use:          "faceoverlay",
	Short:        "Draw live face detections over a video stream",
	Version:      Version,
	SilenceUsage: true,
	RunE:         run,
}

func Execute() {
	// Ctrl+C or SIGTERM moves the loop to Draining on its next iteration
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "model artifact path (overrides modelPath)")
	rootCmd.Flags().StringVarP(&flagSource, "source", "s", "", "video file or camera index (overrides source)")
	rootCmd.Flags().StringVar(&flagBackend, "backend", "", "engine backend: yunet, http or grpc")
	rootCmd.Flags().StringVar(&flagAddress, "address", "", "engine address for the http and grpc backends")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "show a progress bar instead of a window")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log per-frame buffer geometry and detections")
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.ModelPath = flagModel
	}
	if flags.Changed("source") {
		cfg.Source = flagSource
	}
	if flags.Changed("backend") {
		cfg.Engine.Backend = flagBackend
	}
	if flags.Changed("address") {
		cfg.Engine.Address = flagAddress
	}
	if flags.Changed("headless") {
		cfg.Display.Enabled = !headless
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = debug
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.Config) error {
	switch {
	case cfg.Log.Development:
		return logger.InitDevelopment()
	case cfg.Log.Debug:
		return logger.InitProductionDebug()
	default:
		return logger.InitProduction()
	}
}

func newBackend(cfg config.Config) (iface.Backend, error) {
	e := cfg.Engine
	switch e.Backend {
	case "yunet":
		return yunet.New(e.ScoreThreshold, e.NMSThreshold, e.TopK), nil
	case "http":
		return remote.New(e.Address, cfg.EngineTimeout(), e.ScoreThreshold, e.NMSThreshold), nil
	case "grpc":
		return rpc.New(e.Address, cfg.EngineTimeout(), e.ScoreThreshold, e.NMSThreshold), nil
	}
	return nil, fmt.Errorf("unsupported engine backend %q", e.Backend)
}

func loopOptions(cfg config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.ModelPath = cfg.ModelPath
	opts.QuitKey = config.Key(cfg.Display.QuitKey)
	opts.SnapshotKey = config.Key(cfg.Display.SnapshotKey)
	opts.SnapshotDir = cfg.SnapshotDir
	opts.SnapshotAt = cfg.SnapshotAt
	opts.FrameDelay = cfg.FrameDelay()
	return opts
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	rotation, err := capture.ParseRotation(cfg.Display.Rotate)
	if err != nil {
		return err
	}
	source := capture.NewVideoSource(cfg.Source, cfg.CaptureWidth, cfg.CaptureHeight, capture.Renderer(cfg.Renderer))

	var display iface.Display
	if cfg.Display.Enabled {
		display = capture.NewWindow(cfg.Display.Window, cfg.Display.Fullscreen, rotation)
	} else {
		display = pipeline.NewHeadless(source.FrameCount, cmd.ErrOrStderr())
	}

	loop := pipeline.New(source, backend, display, loopOptions(cfg))
	logger.Log().Info("starting",
		zap.String("run", loop.RunID()),
		zap.String("source", cfg.Source),
		zap.String("backend", cfg.Engine.Backend),
		zap.String("renderer", cfg.Renderer),
		zap.Bool("display", cfg.Display.Enabled),
	)

	ctx := cmd.Context()
	monCtx, stopMon := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if cfg.Monitor.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := monitor.StartMon(monCtx, cfg.Monitor.Port, func() gin.H {
				s := loop.Status()
				return gin.H{"run": s.RunID, "state": s.State, "frames": s.Frames, "faces": s.Faces}
			})
			if err != nil {
				logger.Log().Warn("monitor stopped", zap.Error(err))
			}
		}()
	}

	rep, err := loop.Run(ctx)
	stopMon()
	wg.Wait()

	logger.Log().Info("finished",
		zap.String("run", rep.RunID),
		zap.String("reason", string(rep.Reason)),
		zap.Int("frames", rep.Frames),
		zap.Int("faces", rep.Faces),
		zap.Strings("snapshots", rep.Snapshots),
	)
	return err
}
