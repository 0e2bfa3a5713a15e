// ABOUTME: Inspects Ogg/Opus files the way the playback engine reads them
// ABOUTME: Prints header, page, and packet statistics and checks the engine format
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/internal/config"
	"github.com/Resonate-Protocol/resonate-speaker/internal/logging"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
)

var (
	configPath = flag.String("config", "", "Speaker config used for the engine format (default: built-in defaults)")
	chunkSize  = flag.Int("chunk", ogg.DefaultChunkSize, "Read size in bytes")
	decodeAll  = flag.Bool("decode", false, "Decode every packet and report timing")
	logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

// report collects the probe results for one file
type report struct {
	path       string
	head       ogg.OpusHead
	hasHead    bool
	stats      ogg.DemuxStats
	minPacket  int
	maxPacket  int
	samples    int64
	decodeTime time.Duration
	slow       int64
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.opus...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, closer, err := logging.Setup(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	failed := false
	for _, path := range flag.Args() {
		r, err := probe(path, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if !r.print(os.Stdout, cfg) {
			failed = true
		}
	}
	if failed {
		closer.Close()
		os.Exit(1)
	}
}

func probe(path string, cfg *config.Config, logger zerolog.Logger) (*report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	demux := ogg.NewDemuxer(f, ogg.DemuxerConfig{ChunkSize: *chunkSize, Logger: logger})
	defer demux.Close()

	var session *decode.Session
	if *decodeAll {
		adapter := decode.NewAdapter(decode.AdapterConfig{Logger: logger})
		session, err = adapter.Init(decode.Config{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.DecoderChannels,
			FrameMs:    cfg.Audio.FrameMs,
			Expansion:  1,
		})
		if err != nil {
			return nil, err
		}
		defer session.Close()
	}

	r := &report{path: path, minPacket: -1}
	for {
		packet, err := demux.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if r.minPacket < 0 || len(packet) < r.minPacket {
			r.minPacket = len(packet)
		}
		if len(packet) > r.maxPacket {
			r.maxPacket = len(packet)
		}

		if session != nil {
			if _, err := session.Decode(packet); err != nil {
				return nil, fmt.Errorf("packet %d: %w", demux.Stats().Packets, err)
			}
		}
	}

	r.head, r.hasHead = demux.Header()
	r.stats = demux.Stats()
	if session != nil {
		st := session.Stats()
		r.samples = st.Samples
		r.decodeTime = st.DecodeTime
		r.slow = st.SlowDecodes
	}
	return r, nil
}

// print writes the report and reports whether the file matches the engine format
func (r *report) print(w io.Writer, cfg *config.Config) bool {
	fmt.Fprintf(w, "%s\n", r.path)
	if !r.hasHead {
		fmt.Fprintf(w, "  no opus header\n")
		return false
	}

	fmt.Fprintf(w, "  opus version %d, %d channel(s), %d Hz input, pre-skip %d, gain %d\n",
		r.head.Version, r.head.Channels, r.head.InputSampleRate, r.head.PreSkip, r.head.OutputGain)
	fmt.Fprintf(w, "  %d bytes in %d reads, %d pages (%d foreign), %d packets, %d tags skipped\n",
		r.stats.BytesRead, r.stats.Reads, r.stats.Pages, r.stats.ForeignPages, r.stats.Packets, r.stats.TagsSkipped)
	if r.stats.Packets > 0 {
		fmt.Fprintf(w, "  packet size %d..%d bytes\n", r.minPacket, r.maxPacket)
	}
	if *decodeAll {
		duration := time.Duration(0)
		if cfg.Audio.SampleRate > 0 && cfg.Audio.DecoderChannels > 0 {
			frames := r.samples / int64(cfg.Audio.DecoderChannels)
			duration = time.Duration(frames) * time.Second / time.Duration(cfg.Audio.SampleRate)
		}
		fmt.Fprintf(w, "  decoded %s of audio in %s, %d slow packet(s)\n",
			duration.Round(time.Millisecond), r.decodeTime.Round(time.Microsecond), r.slow)
	}

	ok := true
	if int(r.head.InputSampleRate) != cfg.Audio.SampleRate {
		fmt.Fprintf(w, "  warning: input rate %d differs from engine rate %d\n", r.head.InputSampleRate, cfg.Audio.SampleRate)
	}
	if r.head.Channels != cfg.Audio.DecoderChannels {
		fmt.Fprintf(w, "  mismatch: %d channel(s), engine decodes %d\n", r.head.Channels, cfg.Audio.DecoderChannels)
		ok = false
	}
	if ok {
		fmt.Fprintf(w, "  ok\n")
	}
	return ok
}
