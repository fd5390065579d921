package recording

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/voicedesk/internal/backend"
	"github.com/antoniostano/voicedesk/internal/media"
)

// ErrNoEchoAudio is returned when the echo endpoint answers without an audio URL.
var ErrNoEchoAudio = errors.New("no audio URL returned")

// Processing variants.
const (
	ModeLocal  = "local"
	ModeUpload = "upload"
	ModeEcho   = "echo"
)

// Player is the playback element.
type Player interface {
	SetSource(url string)
	Play(ctx context.Context) error
}

// Take is a finalized capture handed to a Processor.
type Take struct {
	Blob      media.Blob
	ObjectURL string
	Duration  time.Duration
}

// Outcome is what a successful (or partially successful) processing step shows.
type Outcome struct {
	Status     string
	Transcript string
}

// Processor is the step run after each recording. Operation names the step in
// failure statuses.
type Processor interface {
	Operation() string
	Process(ctx context.Context, rec Take) (Outcome, error)
}

type Uploader interface {
	Upload(ctx context.Context, filename string, b media.Blob) (backend.UploadResponse, error)
}

type Echoer interface {
	Echo(ctx context.Context, filename string, b media.Blob) (backend.EchoResponse, error)
}

// LocalPlayback plays the recording back from its object URL.
type LocalPlayback struct {
	Player Player
}

func (p *LocalPlayback) Operation() string { return "Playback" }

func (p *LocalPlayback) Process(ctx context.Context, rec Take) (Outcome, error) {
	p.Player.SetSource(rec.ObjectURL)
	if err := p.Player.Play(ctx); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: fmt.Sprintf("Recording stopped (%.1fs, %d bytes), playing back", rec.Duration.Seconds(), rec.Blob.Size())}, nil
}

// Upload posts the recording and previews it locally at the same time.
type Upload struct {
	Client   Uploader
	Preview  Player
	Filename string
	Logger   *zap.Logger
}

func (p *Upload) Operation() string { return "Upload" }

func (p *Upload) Process(ctx context.Context, rec Take) (Outcome, error) {
	filename := p.Filename
	if filename == "" {
		filename = "recording" + media.Extension(rec.Blob.MIMEType)
	}

	var resp backend.UploadResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp, err = p.Client.Upload(gctx, filename, rec.Blob)
		return err
	})
	if p.Preview != nil {
		g.Go(func() error {
			p.Preview.SetSource(rec.ObjectURL)
			if err := p.Preview.Play(gctx); err != nil && p.Logger != nil {
				p.Logger.Warn("local preview failed", zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: fmt.Sprintf("Uploaded %s (%s, %d bytes)", resp.Filename, resp.ContentType, resp.Size)}, nil
}

// Echo sends the recording for transcription and plays the synthesized reply.
type Echo struct {
	Client   Echoer
	Player   Player
	Filename string
}

func (p *Echo) Operation() string { return "Echo" }

func (p *Echo) Process(ctx context.Context, rec Take) (Outcome, error) {
	filename := p.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	resp, err := p.Client.Echo(ctx, filename, rec.Blob)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Transcript: resp.Transcript}
	if resp.AudioURL == "" {
		return out, ErrNoEchoAudio
	}
	p.Player.SetSource(resp.AudioURL)
	if err := p.Player.Play(ctx); err != nil {
		return out, err
	}
	out.Status = "Echo playing"
	return out, nil
}
