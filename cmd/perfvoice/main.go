package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/backend"
	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/observability"
)

type options struct {
	baseURL        string
	voiceID        string
	style          string
	turns          int
	interTurnDelay time.Duration
	timeout        time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"Reply in three words: latency bottleneck?",
	"Reply in three words: next optimization?",
	"Reply in three words: architecture summary?",
	"Reply in three words: top risk?",
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfvoice: %v\n", err)
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()
	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "perfvoice: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var timeoutMS int

	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8000", "voice backend base URL")
	fs.StringVar(&cfg.voiceID, "voice-id", "en-US-ken", "voice_id sent with text-to-speech requests")
	fs.StringVar(&cfg.style, "style", "Conversational", "style sent with text-to-speech requests")
	fs.IntVar(&cfg.turns, "turns", 10, "number of speak+echo turns to replay")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	fs.IntVar(&timeoutMS, "timeout-ms", 15000, "per-request timeout in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if timeoutMS < 1000 {
		timeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.timeout = time.Duration(timeoutMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

// run replays the demo page flow turn by turn: synthesize a line, fetch the
// clip, send it back through the echo endpoint and fetch the echoed clip.
func run(ctx context.Context, cfg options, out io.Writer) error {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "perfvoice")
	client := backend.New(backend.Options{
		BaseURL:  cfg.baseURL,
		Timeout:  cfg.timeout,
		Observer: metrics,
	})

	if _, err := client.Health(ctx); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	if cfg.verbose {
		fmt.Fprintf(out, "perfvoice: base_url=%s turns=%d\n", cfg.baseURL, cfg.turns)
	}

	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		start := time.Now()
		pcm, err := replayTurn(ctx, client, cfg, text)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		if cfg.verbose {
			fmt.Fprintf(out, "perfvoice: turn %d/%d text=%q audio=%.2fs sample_rate=%dHz took=%s\n",
				i+1, cfg.turns, text, pcm.Duration(), pcm.SampleRate, time.Since(start).Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.interTurnDelay):
			}
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(metrics.SnapshotLatency())
}

func replayTurn(ctx context.Context, client *backend.Client, cfg options, text string) (audio.PCM, error) {
	tts, err := client.TextToSpeech(ctx, backend.TTSRequest{Text: text, VoiceID: cfg.voiceID, Style: cfg.style})
	if err != nil {
		return audio.PCM{}, fmt.Errorf("text-to-speech: %w", err)
	}
	if tts.AudioURL == "" {
		return audio.PCM{}, fmt.Errorf("text-to-speech returned no audio_url")
	}
	clip, err := client.FetchAudio(ctx, tts.AudioURL)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("fetch tts audio: %w", err)
	}
	pcm, err := audio.DecodeWAV(clip.Data)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode tts audio: %w", err)
	}
	if len(pcm.Samples) == 0 {
		return audio.PCM{}, fmt.Errorf("tts audio for %q has no samples", text)
	}

	echo, err := client.Echo(ctx, "perfvoice.wav", media.Blob{Data: clip.Data, MIMEType: media.MIMEWAV})
	if err != nil {
		return audio.PCM{}, fmt.Errorf("echo: %w", err)
	}
	if echo.AudioURL == "" {
		return audio.PCM{}, fmt.Errorf("echo returned no audio_url")
	}
	if _, err := client.FetchAudio(ctx, echo.AudioURL); err != nil {
		return audio.PCM{}, fmt.Errorf("fetch echo audio: %w", err)
	}
	return pcm, nil
}
