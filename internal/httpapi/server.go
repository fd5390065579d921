package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/config"
	"github.com/antoniostano/voicedesk/internal/observability"
	"github.com/antoniostano/voicedesk/internal/protocol"
	"github.com/antoniostano/voicedesk/internal/recording"
	"github.com/antoniostano/voicedesk/internal/speech"
)

type Recorder interface {
	Start(ctx context.Context) (recording.State, error)
	Stop(ctx context.Context) (recording.State, error)
	Toggle(ctx context.Context) (recording.State, error)
	Snapshot() recording.Snapshot
}

type Speech interface {
	Speak(ctx context.Context, text string) string
	Hello(ctx context.Context) string
	Health(ctx context.Context) string
}

type Feed interface {
	Subscribe(buffer int) (<-chan any, func())
	ShowError(source, code, detail string)
	Status() string
	Transcript() string
}

type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	recorder Recorder
	speech   Speech
	feed     Feed
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

// New builds the local control surface. A nil gatherer serves the default registry.
func New(cfg config.Config, logger *zap.Logger, recorder Recorder, sp Speech, feed Feed, metrics *observability.Metrics, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		speech:   sp,
		feed:     feed,
		metrics:  metrics,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive the microphone.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if s.gatherer != nil {
			observability.MetricsHandlerFor(s.gatherer).ServeHTTP(w, r)
			return
		}
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/status/ws", s.handleStatusWS)
	r.Post("/v1/recording/start", s.handleRecording(protocol.ActionStartRecording))
	r.Post("/v1/recording/stop", s.handleRecording(protocol.ActionStopRecording))
	r.Post("/v1/recording/toggle", s.handleRecording(protocol.ActionToggleRecording))
	r.Post("/v1/tts", s.handleTTS)
	r.Get("/v1/hello", s.handleHello)
	r.Get("/v1/backend/health", s.handleBackendHealth)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.recorder.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"capture_supported": snap.Supported,
		"recording_mode":    s.cfg.RecordingMode,
	})
}

type statusResponse struct {
	Status     string             `json:"status"`
	Transcript string             `json:"transcript,omitempty"`
	Recording  recording.Snapshot `json:"recording"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{
		Status:     s.feed.Status(),
		Transcript: s.feed.Transcript(),
		Recording:  s.recorder.Snapshot(),
	})
}

func (s *Server) handleRecording(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.observeControl("http", action)
		state, err := s.dispatchRecording(r.Context(), action)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "recorder_unavailable", err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"state":  state.String(),
			"status": s.feed.Status(),
		})
	}
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	s.observeControl("http", protocol.ActionSpeak)
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	status := s.speech.Speak(r.Context(), req.Text)
	if _, err := speech.CheckText(req.Text); errors.Is(err, speech.ErrEmptyText) {
		respondError(w, http.StatusBadRequest, "empty_text", status)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	s.observeControl("http", protocol.ActionHello)
	respondJSON(w, http.StatusOK, map[string]any{"status": s.speech.Hello(r.Context())})
}

func (s *Server) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	s.observeControl("http", protocol.ActionHealth)
	respondJSON(w, http.StatusOK, map[string]any{"status": s.speech.Health(r.Context())})
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.feed.Subscribe(64)
	defer unsubscribe()
	direct := make(chan any, 16)
	direct <- protocol.Status{
		Type:  protocol.TypeStatus,
		Text:  s.feed.Status(),
		State: s.recorder.Snapshot().StateName,
		TSMs:  time.Now().UnixMilli(),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case m, ok := <-events:
				if !ok {
					return
				}
				msg = m
			case m := <-direct:
				msg = m
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("status ws write failed", zap.Error(err))
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			select {
			case direct <- protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Source: "control",
				Detail: err.Error(),
			}:
			default:
				// Keep websocket writes single-threaded; drop if the queue is saturated.
			}
			continue
		}
		control, ok := parsed.(protocol.ClientControl)
		if !ok {
			continue
		}
		s.observeControl("ws", control.Action)
		go s.dispatchControl(ctx, control)
	}

	cancel()
	<-writerDone
}

// dispatchControl runs one action; results reach the client through the feed.
func (s *Server) dispatchControl(ctx context.Context, msg protocol.ClientControl) {
	switch msg.Action {
	case protocol.ActionSpeak:
		s.speech.Speak(ctx, msg.Text)
	case protocol.ActionHello:
		s.speech.Hello(ctx)
	case protocol.ActionHealth:
		s.speech.Health(ctx)
	default:
		if _, err := s.dispatchRecording(ctx, msg.Action); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("recording control failed", zap.String("action", msg.Action), zap.Error(err))
			s.feed.ShowError("recording", "control_failed", err.Error())
		}
	}
}

func (s *Server) dispatchRecording(ctx context.Context, action string) (recording.State, error) {
	switch action {
	case protocol.ActionStartRecording:
		return s.recorder.Start(ctx)
	case protocol.ActionStopRecording:
		return s.recorder.Stop(ctx)
	default:
		return s.recorder.Toggle(ctx)
	}
}

func (s *Server) observeControl(transport, action string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ControlMessages.WithLabelValues(transport, action).Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
