// ABOUTME: Entry point for the speaker playback daemon
// ABOUTME: Loads config, wires the engine to its transports, and waits for shutdown
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/resonate-speaker/internal/config"
	"github.com/Resonate-Protocol/resonate-speaker/internal/discovery"
	"github.com/Resonate-Protocol/resonate-speaker/internal/logging"
	"github.com/Resonate-Protocol/resonate-speaker/internal/remote"
	"github.com/Resonate-Protocol/resonate-speaker/internal/shell"
	"github.com/Resonate-Protocol/resonate-speaker/internal/ui"
	"github.com/Resonate-Protocol/resonate-speaker/internal/version"
	"github.com/Resonate-Protocol/resonate-speaker/internal/watchdog"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/gain"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

var (
	configPath  = flag.String("config", config.DefaultPath, "Config file path")
	backend     = flag.String("backend", "", "Audio backend (overrides config): oto, malgo, portaudio, null")
	logFile     = flag.String("log-file", "", "Log file path (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level (overrides config): debug, info, warn, error")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	port        = flag.Int("port", -1, "Control endpoint port (overrides config, 0 disables)")
	name        = flag.String("name", "", "Speaker friendly name (default: hostname-speaker)")
	play        = flag.String("play", "", "Library index or file path to play on startup")
	interactive = flag.Bool("shell", false, "Read audio commands from stdin (requires -no-tui)")
	versionFlag = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	useTUI := !*noTUI
	if useTUI && cfg.Log.File == "" {
		// the TUI owns the terminal
		cfg.Log.File = "resonate-speaker.log"
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		FileOnly: useTUI,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, logger, useTUI); err != nil {
		log.Error().Err(err).Msg("Speaker stopped with error")
		logCloser.Close()
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags override the config file
func applyFlags(cfg *config.Config) {
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *port >= 0 {
		cfg.Control.Port = *port
	}
	if *name != "" {
		cfg.Control.Name = *name
	}
	if cfg.Control.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Control.Name = fmt.Sprintf("%s-speaker", hostname)
	}
}

func run(cfg *config.Config, logger zerolog.Logger, useTUI bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// background services; the first one to fail shuts the speaker down
	g, gctx := errgroup.WithContext(ctx)

	logger.Info().
		Str("name", cfg.Control.Name).
		Str("version", version.Version).
		Str("backend", cfg.Audio.Backend).
		Msg("Starting speaker")

	bus, err := openBus(cfg.Audio.Backend, logger)
	if err != nil {
		return err
	}

	volume := cfg.VolumeRange()
	volume.Logger = logger
	level, err := gain.NewSoftware(volume)
	if err != nil {
		return fmt.Errorf("gain: %w", err)
	}

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg, err = ui.Run(controls, cfg.Control.Name)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		go tuiProg.Run()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	var remoteSrv *remote.Server
	var player *playback.Player

	pc := cfg.PlayerConfig()
	pc.FS = os.DirFS("/")
	pc.Bus = bus
	pc.Gain = level
	pc.Logger = logger
	pc.OnStateChange = func(s playback.State) {
		if player != nil {
			updateTUI(ui.FromStatus(player.Status()))
		}
		if remoteSrv != nil {
			remoteSrv.BroadcastStatus()
		}
	}
	pc.OnError = func(err error) {
		logger.Error().Err(err).Str("category", playback.CategoryOf(err).String()).Msg("Playback error")
	}

	player, err = playback.New(pc)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer func() {
		if err := player.Close(); err != nil {
			logger.Warn().Err(err).Msg("Error closing player")
		}
	}()

	if err := player.Enable(); err != nil {
		return fmt.Errorf("failed to enable audio path: %w", err)
	}

	sh := shell.New(shell.Config{
		Engine:     player,
		Library:    os.DirFS(cfg.Library.Dir),
		LibraryDir: cfg.Library.Dir,
		Logger:     logger,
	})

	// Control endpoint and advertisement
	if cfg.Control.Port > 0 {
		remoteSrv, err = remote.NewServer(remote.ServerConfig{
			Name:     cfg.Control.Name,
			Port:     cfg.Control.Port,
			Executor: sh,
			Status:   player.Status,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return remoteSrv.ListenAndServe(gctx)
		})

		if cfg.Control.MDNS {
			disc := discovery.NewManager(discovery.Config{
				ServiceName: cfg.Control.Name,
				Port:        cfg.Control.Port,
				Path:        remote.DefaultPath,
				Logger:      logger,
			})
			if err := disc.Advertise(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start mDNS advertisement")
			}
			defer disc.Stop()
		}
	}

	// Liveness supervision
	var wd *watchdog.Watchdog
	if cfg.Watchdog.Interval > 0 {
		wd = watchdog.New(player, watchdog.Config{
			Interval:  cfg.Watchdog.Interval,
			MaxLosses: cfg.Watchdog.MaxLosses,
			OnHung: func(losses int) {
				go func() {
					if err := player.Reset(); err != nil {
						logger.Error().Err(err).Msg("Audio path reset after hang failed")
					}
				}()
			},
			Logger: logger,
		})
		g.Go(func() error {
			wd.Run(gctx)
			return nil
		})
	}

	if *play != "" {
		if err := sh.Execute(ctx, "audio play "+*play, io.Discard); err != nil {
			logger.Error().Err(err).Str("play", *play).Msg("Startup playback failed")
		}
	}

	if tuiProg != nil {
		go handleControls(ctx, controls, sh, player, logger)
		go statusUpdateLoop(ctx, player, wd, remoteSrv, updateTUI)
	}

	shellDone := make(chan struct{})
	if *interactive && !useTUI {
		go func() {
			defer close(shellDone)
			if err := sh.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("Shell ended")
			}
		}()
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	if controls != nil {
		quit = controls.Quit
	}

	select {
	case <-quit:
		logger.Info().Msg("Received quit signal from TUI")
	case <-shellDone:
		logger.Info().Msg("Shell closed")
	case <-sigChan:
		logger.Info().Msg("Shutdown signal received")
	case <-gctx.Done():
	}

	cancel()
	if tuiProg != nil {
		tuiProg.Quit()
	}
	err = g.Wait()
	logger.Info().Msg("Speaker stopped")
	return err
}

// openBus creates the configured backend, falling back to the null bus
// when the build has no audio support
func openBus(name string, logger zerolog.Logger) (output.Bus, error) {
	bus, err := output.New(name)
	if errors.Is(err, output.ErrAudioDisabled) {
		logger.Warn().Str("backend", name).Msg("Audio support disabled in this build, using null backend")
		return output.New("null")
	}
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, output.Backends())
	}
	return bus, nil
}

// handleControls applies operator actions from the TUI
func handleControls(ctx context.Context, controls *ui.Controls, sh *shell.Shell, player *playback.Player, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-controls.Actions:
			var err error
			switch a.Kind {
			case ui.ActionVolume:
				_, err = player.SetVolume(a.Value)
			case ui.ActionMute:
				err = player.SetMute(a.Value != 0)
			case ui.ActionPause:
				err = sh.Execute(ctx, "audio pause", io.Discard)
			case ui.ActionStop:
				err = player.Stop()
			case ui.ActionPlay:
				err = sh.Execute(ctx, "audio play "+strconv.Itoa(a.Value), io.Discard)
			}
			if err != nil {
				logger.Warn().Err(err).Msg("Console action failed")
			}
		}
	}
}

// statusUpdateLoop periodically refreshes the TUI
func statusUpdateLoop(ctx context.Context, player *playback.Player, wd *watchdog.Watchdog, srv *remote.Server, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := ui.FromStatus(player.Status())
			if wd != nil {
				losses := wd.Losses()
				msg.WatchdogLosses = &losses
			}
			if srv != nil {
				conns := srv.Connections()
				msg.Controllers = &conns
			}
			updateTUI(msg)
		}
	}
}
