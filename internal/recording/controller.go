package recording

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/observability"
)

// ErrNotRunning is returned when the event loop has exited.
var ErrNotRunning = errors.New("recording: controller is not running")

// Display is where status and transcript lines are shown.
type Display interface {
	ShowStatus(text string)
	ShowTranscript(text string)
}

// ObjectURLs hands out playable references to recorded blobs.
type ObjectURLs interface {
	Create(b media.Blob) string
	Revoke(url string)
}

type Options struct {
	Logger *zap.Logger
	// Device is nil when the host cannot capture audio.
	Device     audio.Device
	Display    Display
	ObjectURLs ObjectURLs
	Processor  Processor
	Metrics    *observability.Metrics
	// StatusInterval is the elapsed-time refresh cadence.
	StatusInterval time.Duration
	// DefaultMIME is used when the stream does not report a type.
	DefaultMIME string
	Clock       func() time.Time
}

// Snapshot is a consistent view of the session for status endpoints.
type Snapshot struct {
	State         State  `json:"-"`
	StateName     string `json:"state"`
	Supported     bool   `json:"supported"`
	Mode          string `json:"mode,omitempty"`
	BufferedBytes int    `json:"buffered_bytes"`
	ObjectURL     string `json:"object_url,omitempty"`
	DeviceHeld    bool   `json:"device_held"`
	Recordings    int    `json:"recordings"`
}

// Controller owns one recording session. All session state is touched only by
// the goroutine running Run.
type Controller struct {
	logger    *zap.Logger
	opts      Options
	events    chan event
	done      chan struct{}
	startOnce sync.Once

	// loop-owned
	ctx       context.Context
	state     State
	stream    audio.Stream
	buffer    [][]byte
	startedAt time.Time
	stoppedAt time.Time
	tick      *ticker
	pending   Take
	objectURL string
	count     int

	// current mirrors state for readers on other goroutines; it is updated
	// before effects run, the snapshot after.
	current atomic.Int32

	snapMu sync.RWMutex
	snap   Snapshot
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evToggle
	evGranted
	evDenied
	evChunk
	evStreamFailed
	evFinalized
	evTick
	evProcessed
	evProcessFailed
)

type event struct {
	kind    eventKind
	stream  audio.Stream
	data    []byte
	err     error
	tick    *ticker
	outcome Outcome
	reply   chan State
}

func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 200 * time.Millisecond
	}
	if opts.DefaultMIME == "" {
		opts.DefaultMIME = media.MIMEWebM
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &Controller{
		logger: opts.Logger,
		opts:   opts,
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}
	c.snap = Snapshot{State: Idle, StateName: Idle.String(), Supported: c.Supported()}
	if opts.Processor != nil {
		c.snap.Mode = opts.Processor.Operation()
	}
	return c
}

// Supported reports whether a capture device is available.
func (c *Controller) Supported() bool { return c.opts.Device != nil }

// Run processes events until ctx is canceled. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() { started = true })
	if !started {
		return errors.New("recording: controller already running")
	}
	defer close(c.done)
	c.ctx = ctx
	if !c.Supported() {
		c.opts.Display.ShowStatus(StatusUnsupported)
	}
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Start begins a recording and returns the state after the transition.
func (c *Controller) Start(ctx context.Context) (State, error) {
	return c.request(ctx, evStart)
}

// Stop asks the active recording to finalize.
func (c *Controller) Stop(ctx context.Context) (State, error) {
	return c.request(ctx, evStop)
}

// Toggle starts from Idle and stops from Recording; otherwise it does nothing.
func (c *Controller) Toggle(ctx context.Context) (State, error) {
	return c.request(ctx, evToggle)
}

// State is the current session state.
func (c *Controller) State() State { return State(c.current.Load()) }

func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Controller) request(ctx context.Context, kind eventKind) (State, error) {
	reply := make(chan State, 1)
	select {
	case c.events <- event{kind: kind, reply: reply}:
	case <-c.done:
		return Idle, ErrNotRunning
	case <-ctx.Done():
		return Idle, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return Idle, ErrNotRunning
	case <-ctx.Done():
		return Idle, ctx.Err()
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ev event) {
	var (
		next    State
		effects []Effect
	)
	switch ev.kind {
	case evStart:
		if !c.Supported() {
			c.opts.Display.ShowStatus(StatusUnsupported)
			next = c.state
			break
		}
		next, effects = Start(c.state)
	case evStop:
		next, effects = Stop(c.state)
	case evToggle:
		switch {
		case !c.Supported():
			c.opts.Display.ShowStatus(StatusUnsupported)
			next = c.state
		case c.state == Idle:
			next, effects = Start(c.state)
		default:
			next, effects = Stop(c.state)
		}
	case evGranted:
		if c.state != Requesting {
			c.logger.Warn("dropping stale capture grant", zap.Stringer("state", c.state))
			_ = ev.stream.Release()
			return
		}
		c.stream = ev.stream
		c.startedAt = c.opts.Clock()
		next, effects = OnGranted(c.state)
		c.forward(ev.stream)
	case evDenied:
		next, effects = OnDenied(c.state, ev.err)
	case evChunk:
		if ev.stream != c.stream {
			return
		}
		next, effects = OnChunk(c.state, ev.data)
	case evStreamFailed:
		if ev.stream != c.stream {
			return
		}
		next, effects = OnError(c.state, "Recording", ev.err)
	case evFinalized:
		if ev.stream != c.stream {
			return
		}
		c.stoppedAt = c.opts.Clock()
		next, effects = OnFinalize(c.state)
	case evTick:
		if ev.tick != c.tick {
			return
		}
		next, effects = OnTick(c.state, c.opts.Clock().Sub(c.startedAt))
	case evProcessed:
		if ev.outcome.Transcript != "" {
			c.opts.Display.ShowTranscript(ev.outcome.Transcript)
		}
		next, effects = OnProcessed(c.state, ev.outcome.Status)
	case evProcessFailed:
		if ev.outcome.Transcript != "" {
			c.opts.Display.ShowTranscript(ev.outcome.Transcript)
		}
		next, effects = OnError(c.state, c.opts.Processor.Operation(), ev.err)
	}

	prev := c.state
	c.state = next
	c.current.Store(int32(next))
	for _, eff := range effects {
		c.apply(eff)
	}
	if prev != next {
		c.logger.Debug("recording transition", zap.Stringer("from", prev), zap.Stringer("to", next))
		c.opts.Metrics.SetRecordingState(int(next))
		c.opts.Metrics.ObserveRecordingEvent(next.String())
	}
	c.updateSnapshot()
	if ev.reply != nil {
		ev.reply <- c.state
	}
}

func (c *Controller) apply(eff Effect) {
	switch eff.Kind {
	case ShowStatus:
		c.opts.Display.ShowStatus(eff.Status)
	case RequestDevice:
		go c.requestDevice()
	case StartTicker:
		c.stopTicker()
		c.tick = startTicker(c.opts.StatusInterval, func(t *ticker) {
			c.post(event{kind: evTick, tick: t})
		})
	case CancelTicker:
		c.stopTicker()
	case AppendChunk:
		c.buffer = append(c.buffer, eff.Data)
	case FinalizeStream:
		if c.stream != nil {
			if err := c.stream.Stop(); err != nil {
				c.logger.Warn("stream stop failed", zap.Error(err))
			}
		}
	case AssembleRecording:
		mimeType := ""
		if c.stream != nil {
			mimeType = c.stream.MIMEType()
		}
		blob := media.NewBlob(c.buffer, mimeType, c.opts.DefaultMIME)
		c.pending = Take{Blob: blob, Duration: c.stoppedAt.Sub(c.startedAt)}
		c.opts.Metrics.AddRecordedBytes(blob.Size())
		c.logger.Info("recording finalized",
			zap.Int("chunks", len(c.buffer)),
			zap.Int("bytes", blob.Size()),
			zap.String("mime_type", blob.MIMEType),
			zap.Duration("duration", c.pending.Duration),
		)
	case ClearBuffer:
		c.buffer = nil
	case ReleasePlayback:
		if c.objectURL != "" {
			c.opts.ObjectURLs.Revoke(c.objectURL)
			c.objectURL = ""
		}
	case CreatePlayback:
		c.objectURL = c.opts.ObjectURLs.Create(c.pending.Blob)
		c.pending.ObjectURL = c.objectURL
	case Process:
		c.count++
		go c.process(c.pending)
		c.pending = Take{}
	case ReleaseDevice:
		if c.stream != nil {
			if err := c.stream.Release(); err != nil {
				c.logger.Warn("device release failed", zap.Error(err))
			}
			c.stream = nil
		}
	}
}

func (c *Controller) requestDevice() {
	stream, err := c.opts.Device.Open(c.ctx)
	if err != nil {
		c.post(event{kind: evDenied, err: err})
		return
	}
	c.post(event{kind: evGranted, stream: stream})
}

// forward relays chunks in delivery order; finalize is posted after the last one.
func (c *Controller) forward(stream audio.Stream) {
	go func() {
		for chunk := range stream.Chunks() {
			if chunk.Err != nil {
				c.post(event{kind: evStreamFailed, stream: stream, err: chunk.Err})
				for range stream.Chunks() {
				}
				return
			}
			c.post(event{kind: evChunk, stream: stream, data: chunk.Data})
		}
		c.post(event{kind: evFinalized, stream: stream})
	}()
}

func (c *Controller) process(rec Take) {
	outcome, err := c.opts.Processor.Process(c.ctx, rec)
	if err != nil {
		c.post(event{kind: evProcessFailed, outcome: outcome, err: err})
		return
	}
	c.post(event{kind: evProcessed, outcome: outcome})
}

func (c *Controller) stopTicker() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

func (c *Controller) shutdown() {
	c.stopTicker()
	c.buffer = nil
	if c.stream != nil {
		_ = c.stream.Release()
		c.stream = nil
	}
	if c.objectURL != "" {
		c.opts.ObjectURLs.Revoke(c.objectURL)
		c.objectURL = ""
	}
	c.state = Idle
	c.current.Store(int32(Idle))
	c.updateSnapshot()
}

func (c *Controller) updateSnapshot() {
	size := 0
	for _, b := range c.buffer {
		size += len(b)
	}
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	c.snap.State = c.state
	c.snap.StateName = c.state.String()
	c.snap.BufferedBytes = size
	c.snap.ObjectURL = c.objectURL
	c.snap.DeviceHeld = c.stream != nil
	c.snap.Recordings = c.count
}
