package audio

import (
	"context"
	"sync"
	"time"
)

// MockOptions configures a simulated microphone.
type MockOptions struct {
	// Chunks are emitted in order right after Open.
	Chunks [][]byte
	// Interval paces Generate; zero disables generation.
	Interval time.Duration
	// Generate produces the seq-th chunk while recording.
	Generate func(seq int) []byte
	// MIMEType reported by streams. Empty leaves the choice to the caller.
	MIMEType string
	// Deny makes Open fail with this error.
	Deny error
}

// MockDevice is the fallback microphone used when no native capture exists.
type MockDevice struct {
	opts MockOptions
	excl *Exclusive

	mu    sync.Mutex
	opens int
}

func NewMockDevice(opts MockOptions) *MockDevice {
	return &MockDevice{opts: opts, excl: NewExclusive()}
}

// NewToneMockDevice emits 100ms of 440Hz PCM every interval.
func NewToneMockDevice(interval time.Duration) *MockDevice {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	clip := Tone(440, interval.Seconds(), 16000)
	return NewMockDevice(MockOptions{
		Interval: interval,
		Generate: func(int) []byte { return clip },
	})
}

func (d *MockDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.opts.Deny != nil {
		return nil, d.opts.Deny
	}
	release, err := d.excl.Acquire()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.opens++
	d.mu.Unlock()

	s := &mockStream{
		w:        NewChunkWriter(len(d.opts.Chunks) + 4),
		stop:     make(chan struct{}),
		release:  release,
		mimeType: d.opts.MIMEType,
	}
	go s.run(d.opts)
	return s, nil
}

// Held reports whether a stream currently owns the device.
func (d *MockDevice) Held() bool { return d.excl.Held() }

// Opens counts successful Open calls.
func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type mockStream struct {
	w        *ChunkWriter
	stop     chan struct{}
	stopOnce sync.Once
	release  func()
	mimeType string
}

func (s *mockStream) run(opts MockOptions) {
	defer s.w.Close()
	for _, c := range opts.Chunks {
		if len(c) == 0 {
			// Preserve empty deliveries so consumers see them.
			s.w.out <- Chunk{Data: []byte{}}
			continue
		}
		_, _ = s.w.Write(c)
	}
	if opts.Interval <= 0 || opts.Generate == nil {
		<-s.stop
		return
	}
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for seq := 0; ; seq++ {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_, _ = s.w.Write(opts.Generate(seq))
		}
	}
}

func (s *mockStream) Chunks() <-chan Chunk { return s.w.Chunks() }
func (s *mockStream) MIMEType() string     { return s.mimeType }

func (s *mockStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *mockStream) Release() error {
	s.Stop()
	s.release()
	return nil
}
