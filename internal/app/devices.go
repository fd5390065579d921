package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/audio/native"
	"github.com/antoniostano/voicedesk/internal/config"
	"github.com/antoniostano/voicedesk/internal/playback"
)

type deviceSetup struct {
	capture audio.Device
	sink    playback.Sink
	detail  string
	cleanup []func() error
}

// resolveDevices picks capture and playback backends. "auto" prefers the host
// audio stack and falls back to the mock microphone and the file sink.
func resolveDevices(cfg config.Config, logger *zap.Logger) (deviceSetup, error) {
	var setup deviceSetup

	outDir := strings.TrimSpace(cfg.PlaybackOutputDir)
	if outDir == "" {
		outDir = filepath.Join(os.TempDir(), "voicedesk")
	}
	fileSink := playback.NewFileSink(logger.Named("filesink"), outDir)

	captureMode := strings.ToLower(strings.TrimSpace(cfg.CaptureDevice))
	if captureMode == "" {
		captureMode = "auto"
	}
	tryNativeCapture := func(fatal bool) (bool, error) {
		c, err := native.NewCapture(logger.Named("capture"), cfg.CaptureSampleRate, cfg.CaptureChannels)
		if err != nil {
			if fatal {
				return false, fmt.Errorf("native capture init failed: %w", err)
			}
			logger.Info("native capture unavailable", zap.Error(err))
			return false, nil
		}
		setup.capture = c
		setup.cleanup = append(setup.cleanup, c.Close)
		return true, nil
	}
	useMock := func() {
		setup.capture = audio.NewToneMockDevice(cfg.RecordingStatusInterval / 2)
	}

	var captureDetail string
	switch captureMode {
	case "native":
		if _, err := tryNativeCapture(true); err != nil {
			return deviceSetup{}, err
		}
		captureDetail = "native"
	case "mock":
		useMock()
		captureDetail = "mock"
	case "auto":
		ok, _ := tryNativeCapture(false)
		if ok {
			captureDetail = "native"
			break
		}
		useMock()
		captureDetail = "mock (no native capture device)"
	default:
		return deviceSetup{}, fmt.Errorf("invalid CAPTURE_DEVICE: %q (expected auto|native|mock)", cfg.CaptureDevice)
	}

	playbackMode := strings.ToLower(strings.TrimSpace(cfg.PlaybackDevice))
	if playbackMode == "" {
		playbackMode = "auto"
	}
	var playbackDetail string
	switch playbackMode {
	case "file":
		setup.sink = fileSink
		playbackDetail = "file " + outDir
	case "native", "auto":
		sp, err := native.NewSpeaker(logger.Named("speaker"), fileSink)
		if err != nil {
			if playbackMode == "native" {
				return deviceSetup{}, multierr.Append(fmt.Errorf("native playback init failed: %w", err), setup.close())
			}
			logger.Info("native playback unavailable", zap.Error(err))
			setup.sink = fileSink
			playbackDetail = "file " + outDir + " (no native playback device)"
			break
		}
		setup.sink = sp
		setup.cleanup = append(setup.cleanup, sp.Close)
		playbackDetail = "native"
	default:
		return deviceSetup{}, fmt.Errorf("invalid PLAYBACK_DEVICE: %q (expected auto|native|file)", cfg.PlaybackDevice)
	}

	setup.detail = fmt.Sprintf("capture=%s playback=%s", captureDetail, playbackDetail)
	return setup, nil
}

func (d deviceSetup) close() error {
	var err error
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.cleanup[i]())
	}
	return err
}
