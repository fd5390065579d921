// Package speech holds the stateless request flows: text-to-speech, hello and health.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/backend"
)

// Status lines.
const (
	StatusEmptyText  = "Please enter some text"
	StatusNoAudioURL = "No audio URL received"
	StatusConnectErr = "Failed to connect"
)

var ErrEmptyText = errors.New(StatusEmptyText)

var textValidator = validator.New()

// CheckText trims text and returns ErrEmptyText when nothing is left.
func CheckText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := textValidator.Var(text, "required"); err != nil {
		return "", ErrEmptyText
	}
	return text, nil
}

type Client interface {
	Hello(ctx context.Context) (backend.HelloResponse, error)
	Health(ctx context.Context) (backend.HealthResponse, error)
	TextToSpeech(ctx context.Context, req backend.TTSRequest) (backend.TTSResponse, error)
}

type Player interface {
	SetSource(url string)
	Play(ctx context.Context) error
}

type Display interface {
	ShowStatus(text string)
}

type Options struct {
	Logger  *zap.Logger
	Client  Client
	Player  Player
	Display Display
	VoiceID string
	Style   string
}

// Speaker runs one request per call and reports the result on the display.
// Every method returns the status it showed.
type Speaker struct {
	logger *zap.Logger
	opts   Options
}

func New(opts Options) *Speaker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{logger: logger, opts: opts}
}

// Speak synthesizes text and plays the returned audio. Blank text is rejected
// before any request is made.
func (s *Speaker) Speak(ctx context.Context, text string) string {
	text, err := CheckText(text)
	if err != nil {
		return s.show(StatusEmptyText)
	}
	req := backend.TTSRequest{Text: text, VoiceID: s.opts.VoiceID, Style: s.opts.Style}

	resp, err := s.opts.Client.TextToSpeech(ctx, req)
	if err != nil {
		return s.show("Error: " + err.Error())
	}
	if resp.AudioURL == "" {
		return s.show(StatusNoAudioURL)
	}
	s.opts.Player.SetSource(resp.AudioURL)
	if err := s.opts.Player.Play(ctx); err != nil {
		s.logger.Warn("tts playback failed", zap.String("audio_url", resp.AudioURL), zap.Error(err))
		return s.show("Error: " + err.Error())
	}
	voice := resp.VoiceID
	if voice == "" {
		voice = req.VoiceID
	}
	if voice != "" {
		return s.show(fmt.Sprintf("Audio generated successfully (voice %s)", voice))
	}
	return s.show("Audio generated successfully")
}

func (s *Speaker) Hello(ctx context.Context) string {
	resp, err := s.opts.Client.Hello(ctx)
	if err != nil {
		s.logger.Warn("hello failed", zap.Error(err))
		return s.show(StatusConnectErr)
	}
	return s.show(resp.Message)
}

func (s *Speaker) Health(ctx context.Context) string {
	resp, err := s.opts.Client.Health(ctx)
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return s.show(StatusConnectErr)
	}
	return s.show(resp.Status)
}

func (s *Speaker) show(text string) string {
	if s.opts.Display != nil {
		s.opts.Display.ShowStatus(text)
	}
	return text
}
