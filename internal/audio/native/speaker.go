package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/playback"
)

// Ogg Opus always decodes at 48kHz; the channel count comes from the stream.
const opusDecodeRate = 48000

// Speaker plays WAV and Ogg Opus clips on the default output device and hands
// anything it cannot decode to fallback.
type Speaker struct {
	logger   *zap.Logger
	ctx      *malgo.AllocatedContext
	fallback playback.Sink

	mu      sync.Mutex
	current *clip
}

type clip struct {
	dev  *malgo.Device
	stop chan struct{}
}

func NewSpeaker(logger *zap.Logger, fallback playback.Sink) (*Speaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("malgo", zap.String("message", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("init playback context: %w", err)
	}
	devices, err := ctx.Devices(malgo.Playback)
	if err != nil || len(devices) == 0 {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New("no playback device available")
	}
	return &Speaker{logger: logger, ctx: ctx, fallback: fallback}, nil
}

func (s *Speaker) Close() error {
	s.stopCurrent()
	if s.ctx == nil {
		return nil
	}
	err := s.ctx.Uninit()
	s.ctx.Free()
	s.ctx = nil
	return err
}

// Play starts clip and returns; a new Play interrupts the previous clip.
func (s *Speaker) Play(ctx context.Context, b media.Blob) error {
	pcm, err := s.decode(b)
	if err != nil {
		if s.fallback == nil {
			return err
		}
		s.logger.Debug("clip not playable natively, using fallback", zap.String("mime_type", b.MIMEType), zap.Error(err))
		return s.fallback.Play(ctx, b)
	}
	return s.start(pcm)
}

func (s *Speaker) decode(b media.Blob) (audio.PCM, error) {
	mimeType := b.MIMEType
	if sniffed := media.SniffType(b.Data); sniffed != "" {
		mimeType = sniffed
	}
	switch media.BaseType(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return audio.DecodeWAV(b.Data)
	case "audio/ogg", "audio/opus":
		return decodeOggOpus(b.Data)
	default:
		return audio.PCM{}, fmt.Errorf("unsupported clip type %q", mimeType)
	}
}

func decodeOggOpus(data []byte) (audio.PCM, error) {
	channels, err := audio.OpusHeadChannels(data)
	if err != nil {
		return audio.PCM{}, err
	}
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("open ogg opus: %w", err)
	}
	defer stream.Close()

	out := audio.PCM{SampleRate: opusDecodeRate, Channels: channels}
	buf := make([]int16, 5760*channels)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			out.Samples = append(out.Samples, buf[:n*channels]...)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return audio.PCM{}, fmt.Errorf("decode ogg opus: %w", err)
		}
	}
}

func (s *Speaker) start(pcm audio.PCM) error {
	s.stopCurrent()

	data := pcm.Bytes()
	var (
		mu     sync.Mutex
		offset int
	)
	done := make(chan struct{})
	var doneOnce sync.Once

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(pcm.Channels)
	cfg.SampleRate = uint32(pcm.SampleRate)
	onData := func(out, _ []byte, _ uint32) {
		mu.Lock()
		n := copy(out, data[offset:])
		offset += n
		remaining := len(data) - offset
		mu.Unlock()
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if remaining == 0 {
			doneOnce.Do(func() { close(done) })
		}
	}

	dev, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return fmt.Errorf("open playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}

	c := &clip{dev: dev, stop: make(chan struct{})}
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	go func() {
		select {
		case <-done:
		case <-c.stop:
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == c {
			s.current = nil
			dev.Uninit()
		}
	}()
	s.logger.Debug("speaker playing", zap.Float64("seconds", pcm.Duration()))
	return nil
}

func (s *Speaker) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		close(s.current.stop)
		s.current.dev.Uninit()
		s.current = nil
	}
}
