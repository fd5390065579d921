// Package native binds the capture and playback abstractions to the host
// audio stack through miniaudio. It requires cgo and libopus.
package native

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/media"
)

// Capture records from the default input device as Ogg Opus.
type Capture struct {
	logger     *zap.Logger
	ctx        *malgo.AllocatedContext
	sampleRate int
	channels   int
	excl       *audio.Exclusive
}

// NewCapture looks for an input device on the host. It returns audio.ErrUnsupported
// when none is present so callers can fall back.
func NewCapture(logger *zap.Logger, sampleRate, channels int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("malgo", zap.String("message", msg))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", audio.ErrUnsupported, err)
	}
	devices, err := ctx.Devices(malgo.Capture)
	if err != nil || len(devices) == 0 {
		_ = ctx.Uninit()
		ctx.Free()
		if err != nil {
			return nil, fmt.Errorf("%w: list devices: %v", audio.ErrUnsupported, err)
		}
		return nil, audio.ErrUnsupported
	}
	logger.Info("capture device available", zap.String("device", devices[0].Name()), zap.Int("devices", len(devices)))
	return &Capture{
		logger:     logger,
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		excl:       audio.NewExclusive(),
	}, nil
}

func (c *Capture) Close() error {
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

func (c *Capture) Open(ctx context.Context) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	release, err := c.excl.Acquire()
	if err != nil {
		return nil, err
	}

	enc, err := opus.NewEncoder(c.sampleRate, c.channels, opus.AppVoIP)
	if err != nil {
		release()
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	w := audio.NewChunkWriter(64)
	ogg, err := oggwriter.NewWith(w, uint32(c.sampleRate), uint16(c.channels))
	if err != nil {
		release()
		return nil, fmt.Errorf("ogg writer: %w", err)
	}

	s := &captureStream{
		logger:  c.logger,
		w:       w,
		ogg:     ogg,
		enc:     enc,
		pcm:     make(chan []byte, 256),
		release: release,
		frame:   c.sampleRate * audio.OpusFrameMillis / 1000 * c.channels,
		clock:   audio.NewRTPClock(audio.OpusFrameMillis),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(c.channels)
	cfg.SampleRate = uint32(c.sampleRate)
	if runtime.GOOS == "linux" {
		cfg.Alsa.NoMMap = 1
	}
	onData := func(_, input []byte, _ uint32) {
		if len(input) == 0 {
			return
		}
		buf := make([]byte, len(input))
		copy(buf, input)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return
		}
		select {
		case s.pcm <- buf:
		default:
			s.dropped.Add(1)
		}
	}
	dev, err := malgo.InitDevice(c.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		_ = w.Close()
		release()
		return nil, fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = w.Close()
		release()
		return nil, fmt.Errorf("%w: start device: %v", audio.ErrPermissionDenied, err)
	}
	s.dev = dev
	go s.encode()
	return s, nil
}

type captureStream struct {
	logger  *zap.Logger
	dev     *malgo.Device
	w       *audio.ChunkWriter
	ogg     *oggwriter.OggWriter
	enc     *opus.Encoder
	pcm     chan []byte
	release func()
	frame   int
	clock   *audio.RTPClock
	dropped atomic.Int64

	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	seq      uint16
}

func (s *captureStream) Chunks() <-chan audio.Chunk { return s.w.Chunks() }
func (s *captureStream) MIMEType() string           { return media.MIMEOggOpus }

// Stop halts the device; the encoder drains what was captured, then finalizes.
func (s *captureStream) Stop() error {
	s.stopOnce.Do(func() {
		if err := s.dev.Stop(); err != nil {
			s.logger.Warn("capture stop failed", zap.Error(err))
		}
		s.mu.Lock()
		s.stopped = true
		close(s.pcm)
		s.mu.Unlock()
	})
	return nil
}

func (s *captureStream) Release() error {
	_ = s.Stop()
	s.dev.Uninit()
	s.release()
	return nil
}

func (s *captureStream) encode() {
	samples := make([]int16, 0, s.frame*2)
	packet := make([]byte, 4000)
	for buf := range s.pcm {
		for i := 0; i+1 < len(buf); i += 2 {
			samples = append(samples, int16(binary.LittleEndian.Uint16(buf[i:])))
		}
		for len(samples) >= s.frame {
			if err := s.writeFrame(samples[:s.frame], packet); err != nil {
				_ = s.w.Fail(err)
				return
			}
			samples = samples[s.frame:]
		}
	}
	if len(samples) > 0 {
		padded := make([]int16, s.frame)
		copy(padded, samples)
		if err := s.writeFrame(padded, packet); err != nil {
			_ = s.w.Fail(err)
			return
		}
	}
	if n := s.dropped.Load(); n > 0 {
		s.logger.Warn("capture buffers dropped", zap.Int64("dropped", n))
	}
	if err := s.ogg.Close(); err != nil {
		_ = s.w.Fail(err)
		return
	}
	_ = s.w.Close()
}

func (s *captureStream) writeFrame(frame []int16, packet []byte) error {
	n, err := s.enc.Encode(frame, packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	payload := make([]byte, n)
	copy(payload, packet[:n])
	s.seq++
	return s.ogg.WriteRTP(&rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: s.seq, Timestamp: s.clock.Next()},
		Payload: payload,
	})
}
