// Package mockapi is a canned stand-in for the voice demo backend, used for
// local development and end-to-end tests. It never calls a real provider.
package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/audio"
	"github.com/antoniostano/voicedesk/internal/backend"
	"github.com/antoniostano/voicedesk/internal/media"
)

const (
	clipSampleRate = 16000
	maxUploadBytes = 32 << 20
	// Oldest clips are evicted past this count.
	maxClips = 64
	backendDay = 2
)

type Server struct {
	logger *zap.Logger

	mu    sync.RWMutex
	clips map[string][]byte
	order []string
	// Fail forces every /api route to answer with this status when non-zero.
	fail int
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger, clips: make(map[string][]byte)}
}

// FailWith makes every API route return status until called with 0.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.fail = status
	s.mu.Unlock()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(s.failureInjection)
		r.Get("/hello", s.handleHello)
		r.Get("/health", s.handleHealth)
		r.Post("/text-to-speech", s.handleTTS)
		r.Post("/upload", s.handleUpload)
		r.Post("/tts/echo", s.handleEcho)
	})
	r.Get("/audio/{name}", s.handleAudio)
	return r
}

func (s *Server) failureInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		status := s.fail
		s.mu.RUnlock()
		if status != 0 {
			respondJSON(w, status, map[string]string{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHello(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, backend.HelloResponse{Message: "Hello from the mock voice backend"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, backend.HealthResponse{
		Status:   "AI Voice Agent Running!",
		Endpoint: "/api/text-to-speech",
		MurfSDK:  "mock",
		Day:      backendDay,
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req backend.TTSRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "text is required"})
		return
	}
	if req.VoiceID == "" {
		req.VoiceID = "en-US-ken"
	}
	if req.Style == "" {
		req.Style = "Conversational"
	}
	// Longer text gives a longer clip, capped at five seconds.
	seconds := float64(len(text)) * 0.06
	if seconds > 5 {
		seconds = 5
	}
	url, err := s.storeTone(330, seconds)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": "TTS generation failed: " + err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, backend.TTSResponse{AudioURL: url, Text: text, VoiceID: req.VoiceID, Style: req.Style})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, name, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}
	s.logger.Info("upload received", zap.String("filename", name), zap.Int("bytes", len(data)))
	respondJSON(w, http.StatusOK, backend.UploadResponse{Filename: name, ContentType: contentType, Size: int64(len(data))})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	data, name, _, ok := readUpload(w, r)
	if !ok {
		return
	}
	url, err := s.storeTone(523.25, 0.5)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	s.logger.Info("echo received", zap.String("filename", name), zap.Int("bytes", len(data)))
	respondJSON(w, http.StatusOK, backend.EchoResponse{
		Transcript: fmt.Sprintf("[mock transcription of %d bytes of audio]", len(data)),
		AudioURL:   url,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id := strings.TrimSuffix(name, ".wav")
	s.mu.RLock()
	clip, ok := s.clips[id]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", media.MIMEWAV)
	_, _ = w.Write(clip)
}

// Clips is the number of generated audio files held in memory.
func (s *Server) Clips() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clips)
}

func (s *Server) storeTone(freq, seconds float64) (string, error) {
	wav, err := audio.EncodeWAVPCM16LE(audio.Tone(freq, seconds, clipSampleRate), clipSampleRate, 1)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.clips[id] = wav
	s.order = append(s.order, id)
	for len(s.order) > maxClips {
		delete(s.clips, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()
	return "/audio/" + id + ".wav", nil
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "multipart field \"file\" is required"})
		return nil, "", "", false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return nil, "", "", false
	}
	contentType := hdr.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, hdr.Filename, contentType, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
