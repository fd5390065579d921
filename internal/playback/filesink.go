package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/media"
)

// FileSink "plays" a clip by writing it to dir, for hosts without a speaker.
type FileSink struct {
	logger *zap.Logger
	dir    string
	now    func() time.Time

	mu   sync.Mutex
	seq  int
	last string
}

func NewFileSink(logger *zap.Logger, dir string) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{logger: logger, dir: dir, now: time.Now}
}

func (s *FileSink) Play(ctx context.Context, clip media.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create playback dir: %w", err)
	}

	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("clip-%s-%03d%s", s.now().UTC().Format("20060102T150405"), s.seq, media.Extension(clip.MIMEType))
	s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, clip.Data, 0o644); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}

	s.mu.Lock()
	s.last = path
	s.mu.Unlock()
	s.logger.Info("clip written", zap.String("path", path), zap.Int("bytes", clip.Size()))
	return nil
}

// LastPath is the most recently written clip, or "".
func (s *FileSink) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
