// Package statusfeed is the status line shared by the console and remote clients.
package statusfeed

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/observability"
	"github.com/antoniostano/voicedesk/internal/protocol"
)

// Hub keeps the latest status and transcript and fans updates out to
// subscribers. A subscriber that falls behind loses events rather than
// blocking the session.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu         sync.RWMutex
	status     string
	transcript string
	stateFn    func() string
	subs       map[int]chan any
	nextID     int
	dropped    int
}

func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, metrics: metrics, now: time.Now, subs: make(map[int]chan any)}
}

// SetStateSource attaches the recording state to outgoing status events.
func (h *Hub) SetStateSource(fn func() string) {
	h.mu.Lock()
	h.stateFn = fn
	h.mu.Unlock()
}

func (h *Hub) ShowStatus(text string) {
	h.mu.Lock()
	h.status = text
	stateFn := h.stateFn
	h.mu.Unlock()

	ev := protocol.Status{Type: protocol.TypeStatus, Text: text, TSMs: h.now().UnixMilli()}
	if stateFn != nil {
		ev.State = stateFn()
	}
	h.logger.Info("status", zap.String("text", text))
	h.broadcast(ev)
}

func (h *Hub) ShowTranscript(text string) {
	h.mu.Lock()
	h.transcript = text
	h.mu.Unlock()

	h.logger.Info("transcript", zap.String("text", text))
	h.broadcast(protocol.Transcript{Type: protocol.TypeTranscript, Text: text, TSMs: h.now().UnixMilli()})
}

// ShowError publishes an error event without touching the status line.
func (h *Hub) ShowError(source, code, detail string) {
	h.broadcast(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Source: source, Code: code, Detail: detail})
}

func (h *Hub) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Hub) Transcript() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.transcript
}

// Subscribe returns a channel of protocol events and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan any, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan any, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	n := len(h.subs)
	h.mu.Unlock()
	h.setSubscribers(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			n := len(h.subs)
			close(ch)
			h.mu.Unlock()
			h.setSubscribers(n)
		})
	}
}

// Dropped counts events discarded for slow subscribers.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

func (h *Hub) broadcast(ev any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) setSubscribers(n int) {
	if h.metrics == nil {
		return
	}
	h.metrics.StatusSubscribed.Set(float64(n))
}
