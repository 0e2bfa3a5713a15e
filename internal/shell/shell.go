// ABOUTME: Text command dispatcher for the playback engine
// ABOUTME: Parses "audio ..." command lines and prints human-readable replies
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

// Defaults for the ping command
const (
	DefaultPingCount    = 4
	DefaultPingInterval = 500 * time.Millisecond
)

var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotFound       = errors.New("file not found")
	ErrNotPlaying     = errors.New("audio is not playing")
	ErrPaused         = errors.New("not available while playback is paused")
	ErrPingTimeout    = errors.New("no reply from playback goroutine")
	ErrNoLibrary      = errors.New("no audio library configured")
)

// Engine is the playback surface the shell drives
type Engine interface {
	Start(path string) error
	Stop() error
	Pause(pause bool) error
	SetVolume(level int) (int, error)
	SetMute(muted bool) error
	Reset() error
	Ping() playback.PingResult
	Status() playback.Status
}

// Config holds shell configuration
type Config struct {
	Engine Engine

	// Library lists the files addressable by index. LibraryDir is the path
	// the engine uses for the same directory.
	Library    fs.FS
	LibraryDir string

	PingCount    int
	PingInterval time.Duration

	Logger zerolog.Logger
}

// Shell executes command lines against an engine
type Shell struct {
	config Config
	log    zerolog.Logger
}

// New creates a shell
func New(config Config) *Shell {
	if config.PingCount <= 0 {
		config.PingCount = DefaultPingCount
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	return &Shell{
		config: config,
		log:    config.Logger.With().Str("component", "shell").Logger(),
	}
}

// Run reads command lines from r until EOF or ctx is done, writing replies
// and errors to w. Command failures are reported, not returned.
func (s *Shell) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "speaker> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := s.Execute(ctx, line, w); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}

// Execute runs a single command line
func (s *Shell) Execute(ctx context.Context, line string, w io.Writer) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	if args[0] == "help" {
		s.help(w)
		return nil
	}
	if args[0] != "audio" || len(args) < 2 {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	s.log.Debug().Str("command", line).Msg("Executing command")

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "play":
		return s.play(rest, w)
	case "stop":
		return s.stop(w)
	case "pause":
		return s.pause(w)
	case "info":
		return s.info(w)
	case "volume":
		return s.volume(rest, w)
	case "mute":
		return s.mute(rest, w)
	case "set":
		return s.set(rest, w)
	case "playlist":
		return s.playlist(w)
	case "reset":
		return s.reset(w)
	case "ping":
		return s.ping(ctx, w)
	default:
		return fmt.Errorf("%w: audio %s", ErrUnknownCommand, cmd)
	}
}

func (s *Shell) help(w io.Writer) {
	fmt.Fprint(w, `Audio player commands:
  audio play <index|path>   Play a library file by index or a file by path
  audio stop                Stop audio
  audio pause               Pause or resume audio
  audio info                Show playback info
  audio volume <level>      Set volume level
  audio mute <on|off>       Enable or disable mute
  audio playlist            Show library files
  audio reset               Reset the audio path
  audio ping                Ping the playback goroutine
`)
}

func (s *Shell) play(args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: audio play <index|path>", ErrUsage)
	}

	target := args[0]
	if index, err := strconv.Atoi(target); err == nil {
		resolved, err := s.resolveIndex(index)
		if err != nil {
			return err
		}
		target = resolved
	}

	if err := s.config.Engine.Start(target); err != nil {
		return describe(err)
	}
	fmt.Fprintf(w, "Audio playback started: %s\n", target)
	return nil
}

// resolveIndex returns the engine path of the n-th regular library file
func (s *Shell) resolveIndex(index int) (string, error) {
	if index <= 0 {
		return "", fmt.Errorf("%w: invalid index value %d", ErrUsage, index)
	}

	files, err := s.libraryFiles()
	if err != nil {
		return "", err
	}
	if index > len(files) {
		return "", fmt.Errorf("%w: no file with index %d", ErrNotFound, index)
	}
	return path.Join(s.config.LibraryDir, files[index-1]), nil
}

// libraryFiles lists regular files in directory order
func (s *Shell) libraryFiles() ([]string, error) {
	if s.config.Library == nil {
		return nil, ErrNoLibrary
	}

	entries, err := fs.ReadDir(s.config.Library, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func (s *Shell) stop(w io.Writer) error {
	if err := s.config.Engine.Stop(); err != nil {
		return describe(err)
	}
	fmt.Fprintln(w, "Audio playback stopped")
	return nil
}

// pause toggles between paused and playing
func (s *Shell) pause(w io.Writer) error {
	st := s.config.Engine.Status()
	if !st.Playing {
		return fmt.Errorf("%w, cannot pause", ErrNotPlaying)
	}

	pause := !st.Paused
	if err := s.config.Engine.Pause(pause); err != nil {
		return describe(err)
	}
	if pause {
		fmt.Fprintln(w, "Audio paused")
	} else {
		fmt.Fprintln(w, "Audio resumed")
	}
	return nil
}

func (s *Shell) info(w io.Writer) error {
	st := s.config.Engine.Status()

	fmt.Fprintln(w, "Audio info:")
	fmt.Fprintf(w, "  Playback status : %s\n", yesNo(st.Playing, "Playing", "Stopped"))
	fmt.Fprintf(w, "  Pause status    : %s\n", yesNo(st.Paused, "Paused", "Not paused"))
	fmt.Fprintf(w, "  Volume level    : %d\n", st.Volume)
	fmt.Fprintf(w, "  Mute status     : %s\n", yesNo(st.Muted, "Muted", "Not muted"))
	fmt.Fprintf(w, "  Output stage    : %s\n", yesNo(st.OutputOn, "On", "Off"))
	fmt.Fprintf(w, "  Ready           : %t\n", st.Ready)
	if st.Path != "" {
		fmt.Fprintf(w, "  File            : %s\n", st.Path)
		fmt.Fprintf(w, "  Session         : %s\n", st.SessionID)
		fmt.Fprintf(w, "  Packets         : %d (%d samples, %d slow)\n",
			st.Stats.Packets, st.Stats.Samples, st.Stats.SlowDecodes)
		fmt.Fprintf(w, "  Blocks          : %d audio, %d silence, %d padded\n",
			st.Stats.Blocks, st.Stats.SilenceBlocks, st.Stats.PaddedBlocks)
		fmt.Fprintf(w, "  Decode time     : %s\n", st.Stats.DecodeTime)
	}
	if st.Stats.LastError != "" {
		fmt.Fprintf(w, "  Last error      : %s\n", st.Stats.LastError)
	}
	return nil
}

func (s *Shell) volume(args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: audio volume <level>", ErrUsage)
	}
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: invalid volume %q", ErrUsage, args[0])
	}

	applied, err := s.config.Engine.SetVolume(level)
	if err != nil {
		return describe(err)
	}
	if applied != level {
		fmt.Fprintf(w, "Volume out of range, clamped\n")
	}
	fmt.Fprintf(w, "Volume set to %d\n", applied)
	return nil
}

func (s *Shell) mute(args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: audio mute <on|off>", ErrUsage)
	}

	var muted bool
	switch args[0] {
	case "on", "true", "1":
		muted = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("%w: audio mute <on|off>", ErrUsage)
	}

	if err := s.config.Engine.SetMute(muted); err != nil {
		return describe(err)
	}
	fmt.Fprintf(w, "Mute %s\n", yesNo(muted, "enabled", "disabled"))
	return nil
}

// set is the older spelling still used by scripts: audio set volume|mute|unmute
func (s *Shell) set(args []string, w io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: audio set <volume|mute|unmute>", ErrUsage)
	}
	switch args[0] {
	case "volume":
		return s.volume(args[1:], w)
	case "mute":
		return s.mute([]string{"on"}, w)
	case "unmute":
		return s.mute([]string{"off"}, w)
	default:
		return fmt.Errorf("%w: audio set %s", ErrUnknownCommand, args[0])
	}
}

func (s *Shell) playlist(w io.Writer) error {
	files, err := s.libraryFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "No audio files")
		return nil
	}
	for i, name := range files {
		fmt.Fprintf(w, "%d: %s\n", i+1, name)
	}
	return nil
}

func (s *Shell) reset(w io.Writer) error {
	fmt.Fprintln(w, "Resetting audio path...")
	if err := s.config.Engine.Reset(); err != nil {
		return describe(err)
	}
	fmt.Fprintln(w, "Audio path reset completed.")
	return nil
}

// ping probes the playback goroutine up to PingCount times, stopping early
// once it reports the session has ended
func (s *Shell) ping(ctx context.Context, w io.Writer) error {
	if s.config.Engine.Status().Paused {
		return fmt.Errorf("ping is %w", ErrPaused)
	}
	fmt.Fprintln(w, "Starting playback ping...")

	for i := 0; i < s.config.PingCount; i++ {
		start := time.Now()
		result := s.config.Engine.Ping()
		elapsed := time.Since(start)

		switch result {
		case playback.PingStopped:
			fmt.Fprintf(w, "Ping successful: playback stopped. Response time: %d ms\n", elapsed.Milliseconds())
			return nil
		case playback.PingTimeout:
			return ErrPingTimeout
		}

		fmt.Fprintf(w, "Ping successful: playback is %s. Response time: %d ms\n",
			s.config.Engine.Status().State, elapsed.Milliseconds())

		if i == s.config.PingCount-1 {
			break
		}
		select {
		case <-time.After(s.config.PingInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// describe appends the error category so replies say how to react
func describe(err error) error {
	return fmt.Errorf("%w [%s]", err, playback.CategoryOf(err))
}

func yesNo(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
