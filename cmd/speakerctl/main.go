// ABOUTME: Command line controller for speakers on the network
// ABOUTME: Discovers speakers over mDNS and runs audio shell commands remotely
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/internal/discovery"
	"github.com/Resonate-Protocol/resonate-speaker/internal/logging"
	"github.com/Resonate-Protocol/resonate-speaker/internal/remote"
)

var (
	addr     = flag.String("addr", "", "Speaker address host:port (default: first speaker found over mDNS)")
	path     = flag.String("path", remote.DefaultPath, "Control endpoint path")
	discover = flag.Bool("discover", false, "List speakers found over mDNS and exit")
	wait     = flag.Duration("wait", 3*time.Second, "How long to browse for speakers")
	watch    = flag.Bool("watch", false, "Print status updates until interrupted")
	logLevel = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	timeout  = flag.Duration("timeout", 10*time.Second, "Command timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [audio command...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n  %s audio play 1\n  %s -addr speaker.local:8928 audio info\n\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, closer, err := logging.Setup(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	if *discover {
		speakers := browse(ctx, logger, *wait, 0)
		if len(speakers) == 0 {
			return fmt.Errorf("no speakers found")
		}
		for _, s := range speakers {
			fmt.Printf("%s\t%s%s\tv%s\n", s.Name, s.Addr(), s.Path, s.Version)
		}
		return nil
	}

	target := *addr
	endpoint := *path
	if target == "" {
		speakers := browse(ctx, logger, *wait, 1)
		if len(speakers) == 0 {
			return fmt.Errorf("no speakers found, use -addr")
		}
		target = speakers[0].Addr()
		if speakers[0].Path != "" {
			endpoint = speakers[0].Path
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, *timeout)
	client, err := remote.Dial(dialCtx, remote.ClientConfig{Addr: target, Path: endpoint, Logger: logger})
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	hello := client.Hello()
	logger.Info().Str("name", hello.Name).Str("version", hello.Version).Msg("Connected")

	if line := strings.Join(flag.Args(), " "); line != "" {
		cmdCtx, cancel := context.WithTimeout(ctx, *timeout)
		result, err := client.Command(cmdCtx, line)
		cancel()
		if err != nil {
			return err
		}
		fmt.Print(result.Output)
		if !result.OK {
			return fmt.Errorf("%s [%s]", result.Error, result.Category)
		}
	}

	if *watch {
		for {
			select {
			case <-ctx.Done():
				return nil
			case st, ok := <-client.Statuses:
				if !ok {
					return remote.ErrClosed
				}
				printStatus(st)
			}
		}
	}
	return nil
}

// browse collects speakers until the wait elapses or limit are found
func browse(ctx context.Context, logger zerolog.Logger, wait time.Duration, limit int) []*discovery.ServerInfo {
	mgr := discovery.NewManager(discovery.Config{Logger: logger})
	defer mgr.Stop()
	mgr.Browse()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	seen := make(map[string]bool)
	var found []*discovery.ServerInfo
	for {
		select {
		case <-ctx.Done():
			return found
		case <-timer.C:
			return found
		case s := <-mgr.Servers():
			if seen[s.Addr()] {
				continue
			}
			seen[s.Addr()] = true
			found = append(found, s)
			if limit > 0 && len(found) >= limit {
				return found
			}
		}
	}
}

func printStatus(st remote.Status) {
	muted := ""
	if st.Muted {
		muted = " (muted)"
	}
	fmt.Printf("%s\t%s\tvolume %d%s\tpackets %d\tblocks %d",
		time.Now().Format("15:04:05"), st.State, st.Volume, muted, st.Packets, st.Blocks)
	if st.Path != "" {
		fmt.Printf("\t%s", st.Path)
	}
	if st.LastError != "" {
		fmt.Printf("\terror: %s", st.LastError)
	}
	fmt.Println()
}
