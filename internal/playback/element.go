package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/media"
)

var (
	ErrNoSource      = errors.New("playback: no source set")
	ErrRevokedSource = errors.New("playback: object URL was revoked")
)

// Sink renders a clip. Play returns once playback has started.
type Sink interface {
	Play(ctx context.Context, clip media.Blob) error
}

// Fetcher downloads remote audio, resolving relative URLs.
type Fetcher interface {
	FetchAudio(ctx context.Context, url string) (media.Blob, error)
}

// Element mirrors a page's audio element: one source at a time, played on demand.
type Element struct {
	logger   *zap.Logger
	registry *Registry
	fetcher  Fetcher
	sink     Sink

	mu     sync.Mutex
	source string
	plays  int
}

func NewElement(logger *zap.Logger, registry *Registry, fetcher Fetcher, sink Sink) *Element {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Element{logger: logger, registry: registry, fetcher: fetcher, sink: sink}
}

func (e *Element) SetSource(url string) {
	e.mu.Lock()
	e.source = strings.TrimSpace(url)
	e.mu.Unlock()
}

func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

// Plays counts successful Play calls.
func (e *Element) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

// Play loads the current source and starts it on the sink.
func (e *Element) Play(ctx context.Context) error {
	src := e.Source()
	if src == "" {
		return ErrNoSource
	}

	var clip media.Blob
	if IsObjectURL(src) {
		b, ok := e.registry.Resolve(src)
		if !ok {
			return ErrRevokedSource
		}
		clip = b
	} else {
		if e.fetcher == nil {
			return fmt.Errorf("playback: cannot fetch %q without a fetcher", src)
		}
		b, err := e.fetcher.FetchAudio(ctx, src)
		if err != nil {
			return err
		}
		clip = b
	}

	if err := e.sink.Play(ctx, clip); err != nil {
		return fmt.Errorf("play %s: %w", src, err)
	}
	e.mu.Lock()
	e.plays++
	e.mu.Unlock()
	e.logger.Debug("playback started",
		zap.String("source", src),
		zap.String("mime_type", clip.MIMEType),
		zap.Int("bytes", clip.Size()),
	)
	return nil
}
