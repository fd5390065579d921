package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the voice desk client.
type Config struct {
	APIBaseURL       string `validate:"required,url"`
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string `validate:"required"`
	AllowAnyOrigin   bool

	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	RecordingMode           string `validate:"oneof=echo upload local"`
	RecordingStatusInterval time.Duration
	RecordingDefaultMIME    string `validate:"required"`
	RecordingEchoFilename   string `validate:"required"`

	CaptureDevice     string `validate:"oneof=auto native mock"`
	CaptureSampleRate int
	CaptureChannels   int

	PlaybackDevice    string `validate:"oneof=auto native file"`
	PlaybackOutputDir string

	HTTPTimeout time.Duration

	TTSVoiceID string
	TTSStyle   string

	MockAPIBindAddr string
}

// BindDisabled is the APP_BIND_ADDR value that turns the local control API off.
const BindDisabled = "off"

// ControlAPIEnabled reports whether the local control API should listen.
func (c Config) ControlAPIEnabled() bool {
	return c.BindAddr != "" && !strings.EqualFold(c.BindAddr, BindDisabled)
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:       envOrDefault("API_BASE_URL", "http://localhost:8000"),
		BindAddr:         envOrDefault("APP_BIND_ADDR", "127.0.0.1:8090"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voicedesk"),
		AllowAnyOrigin:   false,
		LogLevel:         strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFile:          stringsTrimSpace("LOG_FILE"),
		// The last iteration of the demo page sends recordings through the echo endpoint.
		RecordingMode:           strings.ToLower(envOrDefault("RECORDING_MODE", "echo")),
		RecordingStatusInterval: 200 * time.Millisecond,
		RecordingDefaultMIME:    envOrDefault("RECORDING_DEFAULT_MIME", "audio/webm"),
		RecordingEchoFilename:   envOrDefault("RECORDING_ECHO_FILENAME", "recording.webm"),
		CaptureDevice:           strings.ToLower(envOrDefault("CAPTURE_DEVICE", "auto")),
		// Opus wants 48 kHz.
		CaptureSampleRate: 48000,
		CaptureChannels:   1,
		PlaybackDevice:    strings.ToLower(envOrDefault("PLAYBACK_DEVICE", "auto")),
		PlaybackOutputDir: stringsTrimSpace("PLAYBACK_OUTPUT_DIR"),
		// Zero keeps the HTTP client's own behaviour (no deadline).
		HTTPTimeout:     0,
		TTSVoiceID:      envOrDefault("TTS_VOICE_ID", "en-US-ken"),
		TTSStyle:        envOrDefault("TTS_STYLE", "Conversational"),
		MockAPIBindAddr: envOrDefault("MOCKAPI_BIND_ADDR", ":8000"),
		ShutdownTimeout: 10 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordingStatusInterval, err = durationFromEnv("RECORDING_STATUS_INTERVAL", cfg.RecordingStatusInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPTimeout, err = durationFromEnv("HTTP_TIMEOUT", cfg.HTTPTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureSampleRate, err = intFromEnv("CAPTURE_SAMPLE_RATE", cfg.CaptureSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.CaptureChannels, err = intFromEnv("CAPTURE_CHANNELS", cfg.CaptureChannels)
	if err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Config{}, fmt.Errorf("invalid %s: %q fails %q", verrs[0].Field(), verrs[0].Value(), verrs[0].Tag())
		}
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	if cfg.RecordingStatusInterval < 10*time.Millisecond {
		return Config{}, fmt.Errorf("RECORDING_STATUS_INTERVAL must be at least 10ms")
	}
	if cfg.HTTPTimeout < 0 {
		return Config{}, fmt.Errorf("HTTP_TIMEOUT must be >= 0")
	}
	switch cfg.CaptureSampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return Config{}, fmt.Errorf("CAPTURE_SAMPLE_RATE must be one of 8000, 12000, 16000, 24000, 48000")
	}
	if cfg.CaptureChannels != 1 && cfg.CaptureChannels != 2 {
		return Config{}, fmt.Errorf("CAPTURE_CHANNELS must be 1 or 2")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
