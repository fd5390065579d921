package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/config"
	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/mockapi"
	"github.com/antoniostano/voicedesk/internal/playback"
	"github.com/antoniostano/voicedesk/internal/recording"
)

type captureSink struct {
	mu    sync.Mutex
	clips []media.Blob
}

func (s *captureSink) Play(_ context.Context, clip media.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
	return nil
}

func (s *captureSink) played() []media.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.Blob(nil), s.clips...)
}

func testConfig(t *testing.T, baseURL, mode string) config.Config {
	t.Helper()
	return config.Config{
		APIBaseURL:              baseURL,
		MetricsNamespace:        "test_app",
		RecordingMode:           mode,
		RecordingStatusInterval: 10 * time.Millisecond,
		RecordingDefaultMIME:    "audio/webm",
		RecordingEchoFilename:   "recording.webm",
		CaptureDevice:           "mock",
		CaptureSampleRate:       16000,
		CaptureChannels:         1,
		PlaybackDevice:          "file",
		PlaybackOutputDir:       t.TempDir(),
		TTSVoiceID:              "en-US-ken",
		TTSStyle:                "Conversational",
	}
}

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(mockapi.New(zaptest.NewLogger(t)).Router())
	t.Cleanup(ts.Close)
	return ts
}

func buildWith(t *testing.T, cfg config.Config, device audio.Device, sink playback.Sink) *BuildResult {
	t.Helper()
	res, err := Build(context.Background(), cfg, zaptest.NewLogger(t), Options{
		Registerer: prometheus.NewRegistry(),
		Capture:    device,
		Sink:       sink,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = res.Recorder.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return res
}

func waitState(t *testing.T, res *BuildResult, want recording.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return res.Recorder.State() == want
	}, 3*time.Second, 5*time.Millisecond, "recorder never reached %s", want)
}

func TestEchoRoundTripAgainstMockBackend(t *testing.T) {
	ts := startBackend(t)
	sink := &captureSink{}
	device := audio.NewMockDevice(audio.MockOptions{Chunks: [][]byte{[]byte("abc")}})
	res := buildWith(t, testConfig(t, ts.URL, "echo"), device, sink)
	ctx := context.Background()

	_, err := res.Recorder.Toggle(ctx)
	require.NoError(t, err)
	waitState(t, res, recording.Recording)
	_, err = res.Recorder.Toggle(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return res.Feed.Status() == "Echo playing"
	}, 3*time.Second, 5*time.Millisecond)
	waitState(t, res, recording.Idle)

	assert.Equal(t, "[mock transcription of 3 bytes of audio]", res.Feed.Transcript())
	clips := sink.played()
	require.Len(t, clips, 1)
	assert.Equal(t, media.MIMEWAV, clips[0].MIMEType)
	assert.False(t, device.Held())
	assert.Equal(t, 1, res.Objects.Live())
}

func TestUploadModeReportsServerResponse(t *testing.T) {
	ts := startBackend(t)
	device := audio.NewMockDevice(audio.MockOptions{Chunks: [][]byte{[]byte("ab"), []byte("cd")}})
	res := buildWith(t, testConfig(t, ts.URL, "upload"), device, &captureSink{})
	ctx := context.Background()

	_, err := res.Recorder.Start(ctx)
	require.NoError(t, err)
	waitState(t, res, recording.Recording)
	_, err = res.Recorder.Stop(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return res.Feed.Status() == "Uploaded recording.webm (audio/webm, 4 bytes)"
	}, 3*time.Second, 5*time.Millisecond, "status = %q", res.Feed.Status())
}

func TestBuildRejectsUnknownRecordingMode(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "telepathy")
	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t), Options{
		Registerer: prometheus.NewRegistry(),
		Capture:    audio.NewMockDevice(audio.MockOptions{}),
		Sink:       &captureSink{},
	})
	assert.ErrorContains(t, err, "invalid RECORDING_MODE")
}

func TestResolveDevicesMockAndFile(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "echo")
	setup, err := resolveDevices(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer setup.close()

	assert.IsType(t, &audio.MockDevice{}, setup.capture)
	assert.IsType(t, &playback.FileSink{}, setup.sink)
	assert.Equal(t, "capture=mock playback=file "+cfg.PlaybackOutputDir, setup.detail)
}

func TestResolveDevicesRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "echo")
	cfg.CaptureDevice = "tin-can"
	_, err := resolveDevices(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "invalid CAPTURE_DEVICE")

	cfg.CaptureDevice = "mock"
	cfg.PlaybackDevice = "hifi"
	_, err = resolveDevices(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "invalid PLAYBACK_DEVICE")
}

func TestConsoleCommands(t *testing.T) {
	ts := startBackend(t)
	res := buildWith(t, testConfig(t, ts.URL, "echo"), audio.NewMockDevice(audio.MockOptions{}), &captureSink{})

	var out bytes.Buffer
	console := NewConsole(zaptest.NewLogger(t), &out, res.Recorder, res.Speech, res.Feed)
	in := strings.NewReader("hello\nsay \nsay hi there\nstatus\nbogus\nquit\nhealth\n")
	require.NoError(t, console.Run(context.Background(), in))

	got := out.String()
	assert.Contains(t, got, "[status] Hello from the mock voice backend")
	assert.Contains(t, got, "[status] Please enter some text")
	assert.Contains(t, got, "[status] Audio generated successfully (voice en-US-ken)")
	assert.Contains(t, got, "state=idle supported=true mode=Echo")
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.NotContains(t, got, "AI Voice Agent Running!")
}

func TestConsoleStopsAtEndOfInput(t *testing.T) {
	ts := startBackend(t)
	res := buildWith(t, testConfig(t, ts.URL, "local"), audio.NewMockDevice(audio.MockOptions{}), &captureSink{})

	var out bytes.Buffer
	console := NewConsole(nil, &out, res.Recorder, res.Speech, res.Feed)
	require.NoError(t, console.Run(context.Background(), strings.NewReader("help")))
	assert.Contains(t, out.String(), "say <text>")
}
