// ABOUTME: Generates Ogg/Opus files for the speaker library
// ABOUTME: Encodes a test tone or raw 16-bit PCM into the engine's stream format
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-speaker/internal/logging"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/resample"
)

var (
	output    = flag.String("o", "", "Output file (required)")
	input     = flag.String("pcm", "", "Raw little-endian 16-bit PCM input, - for stdin (default: test tone)")
	inputRate = flag.Int("rate", audio.DefaultSampleRate, "Sample rate of the PCM input")
	channels  = flag.Int("channels", audio.DefaultDecoderChannels, "Channel count of the input and output")
	freq      = flag.Float64("freq", 440, "Test tone frequency in Hz")
	duration  = flag.Duration("duration", 3*time.Second, "Test tone duration")
	level     = flag.Float64("level", 0.5, "Test tone amplitude, 0..1")
	frameMs   = flag.Int("frame", audio.DefaultFrameMs, "Opus frame duration in ms")
	bitrate   = flag.Int("bitrate", 0, "Opus bitrate in bits per second (default: libopus choice)")
	serial    = flag.Uint("serial", 1, "Ogg stream serial number")
	perPage   = flag.Int("packets-per-page", 1, "Packets grouped on each Ogg page")
)

func main() {
	flag.Parse()

	if _, _, err := logging.Setup(logging.Options{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		flag.Usage()
		os.Exit(2)
	}

	pcm, err := source()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}

	if *inputRate != audio.DefaultSampleRate {
		pcm = resample.New(*inputRate, audio.DefaultSampleRate, *channels).All(pcm)
		log.Info().Int("from", *inputRate).Int("to", audio.DefaultSampleRate).Msg("Resampled input")
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output")
	}
	defer f.Close()

	w, err := encode.NewFile(f, encode.FileConfig{
		SampleRate:     audio.DefaultSampleRate,
		Channels:       *channels,
		FrameMs:        *frameMs,
		Bitrate:        *bitrate,
		Serial:         uint32(*serial),
		PacketsPerPage: *perPage,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start encoder")
	}
	if err := w.Write(pcm); err != nil {
		log.Fatal().Err(err).Msg("Encode failed")
	}
	if err := w.Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to finish stream")
	}

	log.Info().
		Str("file", *output).
		Int64("packets", w.Packets()).
		Int("channels", *channels).
		Msg("Stream written")
}

func source() ([]int16, error) {
	switch *input {
	case "":
		return encode.Tone(*freq, *duration, *inputRate, *channels, *level), nil
	case "-":
		return encode.ReadPCM(os.Stdin)
	default:
		f, err := os.Open(*input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return encode.ReadPCM(f)
	}
}
