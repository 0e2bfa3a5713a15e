// ABOUTME: Playback goroutine and per-file session
// ABOUTME: Runs demux, decode, upmix, and output with exactly-once teardown
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/upmix"
)

// errStopRequested ends a session without reporting an error
var errStopRequested = errors.New("stop requested")

// run is the playback goroutine. It owns the decoder, demuxer, scheduler,
// and every bus trigger.
func (p *Player) run() {
	defer close(p.done)

	for {
		ev, err := p.events.wait(p.ctx, EventStart|EventPing)
		if err != nil {
			return
		}

		if ev&EventPing != 0 {
			p.pings.reply(PingAlive)
		}

		if ev&EventStart != 0 {
			p.playPending()
		}
	}
}

// playPending runs the session for the request posted by Start
func (p *Player) playPending() {
	p.mu.Lock()
	req := p.pending
	p.pending = nil
	scheduler := p.scheduler
	ctx, cancel := context.WithCancel(p.ctx)
	p.sessionCancel = cancel
	p.mu.Unlock()

	if req == nil {
		cancel()
		return
	}

	s := &session{
		id:        uuid.New().String(),
		player:    p,
		path:      req.path,
		file:      req.file,
		ctx:       ctx,
		cancel:    cancel,
		scheduler: scheduler,
	}
	s.log = p.log.With().Str("session", s.id).Logger()
	if scheduler != nil {
		scheduler.ResetStats()
	}

	p.statusMu.Lock()
	p.path = s.path
	p.sessionID = s.id
	p.stats = Stats{}
	p.statusMu.Unlock()

	err := s.play()
	s.teardown()

	if err != nil && !errors.Is(err, errStopRequested) {
		p.reportError(err)
	}

	p.mu.Lock()
	p.events.take(EventStop | EventPause | EventResume)
	p.claimed = false
	p.sessionCancel = nil
	done := p.sessionDone
	p.sessionDone = nil
	p.mu.Unlock()

	p.pings.reply(PingStopped)
	if done != nil {
		close(done)
	}
}

// session is one playback of one file
type session struct {
	id     string
	player *Player
	path   string
	file   fs.File
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	scheduler *output.Scheduler
	demux     *ogg.Demuxer
	decoder   *decode.Session
	paused    bool

	once sync.Once
}

// play primes the bus and runs the packet loop until end of stream, an
// error, or a stop request
func (s *session) play() error {
	p := s.player
	if s.scheduler == nil {
		return ErrNotReady
	}

	s.demux = ogg.NewDemuxer(s.file, ogg.DemuxerConfig{
		ChunkSize: p.config.ChunkSize,
		Yield:     p.config.Yield,
		Logger:    p.config.Logger,
	})

	if err := s.startOutput(); err != nil {
		return err
	}
	p.setState(StatePlaying)
	s.log.Info().Str("path", s.path).Msg("Playback start")

	for {
		packet, err := s.demux.Next()
		if errors.Is(err, io.EOF) {
			s.log.Info().Msg("Playback finished")
			return nil
		}
		if err != nil {
			return s.classifyDemuxError(err)
		}

		if s.decoder == nil {
			if err := s.openDecoder(); err != nil {
				return err
			}
		}

		if err := s.decodeAndWrite(packet); err != nil {
			if s.ctx.Err() != nil {
				return errStopRequested
			}
			return err
		}

		if err := s.handleControl(); err != nil {
			return err
		}

		p.config.Yield()
	}
}

// startOutput primes silence, starts the bus, and opens the gain stage
func (s *session) startOutput() error {
	p := s.player

	if err := s.scheduler.Prime(s.ctx, p.config.silenceCount()); err != nil {
		return s.outputError(err)
	}
	if err := p.config.Bus.Trigger(output.TriggerStart); err != nil {
		return fmt.Errorf("%w: trigger start: %w", ErrHardware, err)
	}
	if p.config.AutoMute {
		if err := p.config.Gain.StartOutput(); err != nil {
			return fmt.Errorf("%w: %w", ErrCodecControl, err)
		}
		p.outputOn.Store(true)
	}
	return nil
}

// openDecoder validates the stream header against the engine format and
// configures the decoder from the engine format
func (s *session) openDecoder() error {
	p := s.player
	format := p.config.Format

	if head, ok := s.demux.Header(); ok {
		if int(head.InputSampleRate) != format.SampleRate {
			s.log.Warn().
				Uint32("stream_rate", head.InputSampleRate).
				Int("engine_rate", format.SampleRate).
				Msg("Stream sample rate differs from output, decoding at output rate")
		}
		if head.Channels != p.config.DecoderChannels {
			s.log.Warn().
				Int("stream_channels", head.Channels).
				Int("decoder_channels", p.config.DecoderChannels).
				Msg("Stream channel count differs from decoder configuration, codec will remix")
		}
	}

	dec, err := p.adapter.Init(decode.Config{
		SampleRate: format.SampleRate,
		Channels:   p.config.DecoderChannels,
		FrameMs:    format.FrameMs,
		Expansion:  p.factor,
	})
	if err != nil {
		return err
	}
	s.decoder = dec
	return nil
}

// decodeAndWrite decodes one packet, expands it to the bus layout, and writes it out
func (s *session) decodeAndWrite(packet []byte) error {
	n, err := s.decoder.Decode(packet)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	buf := s.decoder.Buffer()
	total := upmix.Duplicate(buf, n, s.player.factor)
	s.log.Debug().Int("decoded", n).Int("output", total).Msg("Packet decoded")

	if err := s.scheduler.Write(s.ctx, buf[:total]); err != nil {
		return s.outputError(err)
	}
	s.syncStats()
	return nil
}

// handleControl services commands posted while playing. It returns
// errStopRequested when the session must end.
func (s *session) handleControl() error {
	p := s.player
	ev := p.events.take(EventStop | EventPause | EventResume | EventPing)

	if ev&EventPing != 0 {
		p.pings.reply(PingAlive)
	}
	if ev&EventStop != 0 {
		s.log.Debug().Msg("Stop event received")
		return errStopRequested
	}
	if ev&EventPause == 0 {
		return nil
	}

	s.log.Debug().Msg("Pause event received")
	if err := s.pause(); err != nil {
		return err
	}

	for {
		ev, err := p.events.wait(s.ctx, EventResume|EventStop|EventPing)
		if err != nil {
			return errStopRequested
		}
		if ev&EventPing != 0 {
			p.pings.reply(PingAlive)
		}
		if ev&EventStop != 0 {
			s.log.Debug().Msg("Stop event received during pause")
			return errStopRequested
		}
		if ev&EventResume != 0 {
			s.log.Debug().Msg("Resume event received")
			return s.resume()
		}
	}
}

// pause drops queued output and suspends the bus
func (s *session) pause() error {
	p := s.player

	if err := p.config.Bus.Trigger(output.TriggerDrop); err != nil {
		return fmt.Errorf("%w: trigger drop: %w", ErrHardware, err)
	}
	if p.config.AutoMute {
		if err := p.config.Gain.StopOutput(); err != nil {
			s.log.Warn().Err(err).Msg("Gain stop failed")
		}
		p.outputOn.Store(false)
	}

	s.paused = true
	p.setState(StatePaused)
	return nil
}

// resume re-primes silence and restarts the bus
func (s *session) resume() error {
	if err := s.startOutput(); err != nil {
		return err
	}
	s.paused = false
	s.player.setState(StatePlaying)
	return nil
}

// teardown restores bus, decoder, and demuxer state. Only the first call
// does any work.
func (s *session) teardown() {
	s.once.Do(func() {
		p := s.player
		p.setState(StateStopping)

		if s.scheduler != nil {
			// the session context may already be cancelled by Stop
			ctx, cancel := context.WithCancel(p.ctx)
			if err := s.scheduler.Prime(ctx, p.config.silenceCount()); err != nil {
				s.log.Warn().Err(err).Msg("Silence priming during stop failed")
			}
			cancel()

			trigger := output.TriggerDrain
			if s.paused {
				trigger = output.TriggerDrop
			}
			if err := p.config.Bus.Trigger(trigger); err != nil {
				s.log.Error().Err(err).Str("trigger", trigger.String()).Msg("Failed to set trigger")
				p.config.Bus.Trigger(output.TriggerDrop)
			}
		}

		if p.config.AutoMute {
			if err := p.config.Gain.StopOutput(); err != nil {
				s.log.Warn().Err(err).Msg("Gain stop failed")
			}
			p.outputOn.Store(false)
		}

		s.syncStats()

		if s.decoder != nil {
			s.decoder.Close()
		}
		if s.demux != nil {
			s.demux.Close()
		}
		if err := s.file.Close(); err != nil {
			s.log.Warn().Err(err).Msg("File close failed")
		}
		s.cancel()

		p.setState(StateIdle)
		s.log.Info().Msg("Playback stopped")
	})
}

// syncStats publishes the session counters to the status snapshot
func (s *session) syncStats() {
	var st Stats
	if s.demux != nil {
		ds := s.demux.Stats()
		st.TagsSkipped = ds.TagsSkipped
		st.BytesRead = ds.BytesRead
	}
	if s.decoder != nil {
		dst := s.decoder.Stats()
		st.Packets = dst.Packets
		st.Samples = dst.Samples
		st.SlowDecodes = dst.SlowDecodes
		st.DecodeTime = dst.DecodeTime
	}
	if s.scheduler != nil {
		sst := s.scheduler.Stats()
		st.Blocks = sst.Blocks
		st.SilenceBlocks = sst.SilenceBlocks
		st.PaddedBlocks = sst.PaddedBlocks
	}

	p := s.player
	p.statusMu.Lock()
	st.LastError = p.stats.LastError
	p.stats = st
	p.statusMu.Unlock()
}

// outputError maps scheduler failures onto error categories
func (s *session) outputError(err error) error {
	switch {
	case errors.Is(err, output.ErrPoolTimeout):
		return err
	case s.ctx.Err() != nil:
		return errStopRequested
	default:
		return fmt.Errorf("%w: %w", ErrBusWrite, err)
	}
}

// classifyDemuxError wraps read failures so they count as I/O errors
func (s *session) classifyDemuxError(err error) error {
	if CategoryOf(err) == CategoryStream {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFileRead, err)
}
