package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/backend"
	"github.com/antoniostano/voicedesk/internal/config"
	"github.com/antoniostano/voicedesk/internal/httpapi"
	"github.com/antoniostano/voicedesk/internal/observability"
	"github.com/antoniostano/voicedesk/internal/playback"
	"github.com/antoniostano/voicedesk/internal/recording"
	"github.com/antoniostano/voicedesk/internal/speech"
	"github.com/antoniostano/voicedesk/internal/statusfeed"
)

type BuildResult struct {
	Config   config.Config
	Logger   *zap.Logger
	Backend  *backend.Client
	Recorder *recording.Controller
	Speech   *speech.Speaker
	Feed     *statusfeed.Hub
	Element  *playback.Element
	Objects  *playback.Registry
	API      *httpapi.Server
	Metrics  *observability.Metrics
	// DeviceDetail describes the resolved capture and playback backends.
	DeviceDetail string

	// Cleanup should be called on shutdown to release audio devices.
	Cleanup func() error
}

// Options lets callers (tests, mostly) replace the resolved devices.
type Options struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Capture    audio.Device
	Sink       playback.Sink
}

func Build(_ context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metrics := observability.NewMetricsWith(reg, cfg.MetricsNamespace)

	devices := deviceSetup{capture: opts.Capture, sink: opts.Sink, detail: "injected"}
	if opts.Capture == nil || opts.Sink == nil {
		resolved, err := resolveDevices(cfg, logger)
		if err != nil {
			return nil, err
		}
		if opts.Capture != nil {
			resolved.capture = opts.Capture
		}
		if opts.Sink != nil {
			resolved.sink = opts.Sink
		}
		devices = resolved
	}

	client := backend.New(backend.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.HTTPTimeout,
		Logger:   logger.Named("backend"),
		Observer: metrics,
	})

	feed := statusfeed.NewHub(logger.Named("status"), metrics)
	objects := playback.NewRegistry(metrics)
	element := playback.NewElement(logger.Named("playback"), objects, client, devices.sink)

	processor, err := newProcessor(cfg, client, element, logger)
	if err != nil {
		return nil, multierr.Append(err, devices.close())
	}

	recorder := recording.New(recording.Options{
		Logger:         logger.Named("recording"),
		Device:         devices.capture,
		Display:        feed,
		ObjectURLs:     objects,
		Processor:      processor,
		Metrics:        metrics,
		StatusInterval: cfg.RecordingStatusInterval,
		DefaultMIME:    cfg.RecordingDefaultMIME,
	})
	feed.SetStateSource(func() string { return recorder.State().String() })

	sp := speech.New(speech.Options{
		Logger:  logger.Named("speech"),
		Client:  client,
		Player:  element,
		Display: feed,
		VoiceID: cfg.TTSVoiceID,
		Style:   cfg.TTSStyle,
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		if g, ok := reg.(prometheus.Gatherer); ok {
			gatherer = g
		}
	}
	api := httpapi.New(cfg, logger.Named("httpapi"), recorder, sp, feed, metrics, gatherer)

	logger.Info("voicedesk built",
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.String("recording_mode", cfg.RecordingMode),
		zap.String("devices", devices.detail),
	)

	return &BuildResult{
		Config:       cfg,
		Logger:       logger,
		Backend:      client,
		Recorder:     recorder,
		Speech:       sp,
		Feed:         feed,
		Element:      element,
		Objects:      objects,
		API:          api,
		Metrics:      metrics,
		DeviceDetail: devices.detail,
		Cleanup:      devices.close,
	}, nil
}

func newProcessor(cfg config.Config, client *backend.Client, element *playback.Element, logger *zap.Logger) (recording.Processor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RecordingMode)) {
	case recording.ModeLocal:
		return &recording.LocalPlayback{Player: element}, nil
	case recording.ModeUpload:
		return &recording.Upload{Client: client, Preview: element, Logger: logger.Named("upload")}, nil
	case recording.ModeEcho, "":
		return &recording.Echo{Client: client, Player: element, Filename: cfg.RecordingEchoFilename}, nil
	default:
		return nil, fmt.Errorf("invalid RECORDING_MODE: %q (expected echo|upload|local)", cfg.RecordingMode)
	}
}
