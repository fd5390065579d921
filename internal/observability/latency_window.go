package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

type RequestStats struct {
	Endpoint    string  `json:"endpoint"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type OutcomeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Endpoints   []RequestStats `json:"endpoints"`
	Outcomes    []OutcomeCount `json:"outcomes,omitempty"`
}

// p95 budgets per backend endpoint, in milliseconds.
var endpointTargets = map[string]float64{
	"hello":          200,
	"health":         200,
	"upload":         1000,
	"text_to_speech": 2500,
	"echo":           4000,
}

// latencyWindow keeps the most recent size latencies per backend endpoint
// plus running outcome counts.
type latencyWindow struct {
	size int

	mu       sync.RWMutex
	series   map[string]*latencySeries
	outcomes map[string]int
}

// latencySeries is a fixed ring; seen counts every sample ever written.
type latencySeries struct {
	ring []float64
	seen uint64
}

func (s *latencySeries) add(ms float64) {
	s.ring[s.seen%uint64(len(s.ring))] = ms
	s.seen++
}

func (s *latencySeries) newest() float64 {
	return s.ring[(s.seen-1)%uint64(len(s.ring))]
}

// window returns the retained samples in ascending order.
func (s *latencySeries) window() []float64 {
	n := min(s.seen, uint64(len(s.ring)))
	out := slices.Clone(s.ring[:n])
	slices.Sort(out)
	return out
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = 256
	}
	return &latencyWindow{
		size:     size,
		series:   make(map[string]*latencySeries),
		outcomes: make(map[string]int),
	}
}

func (w *latencyWindow) Observe(endpoint string, ms float64) {
	if endpoint == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.series[endpoint]
	if s == nil {
		s = &latencySeries{ring: make([]float64, w.size)}
		w.series[endpoint] = s
	}
	s.add(ms)
}

func (w *latencyWindow) ObserveOutcome(name string) {
	if w == nil {
		return
	}
	if name = strings.TrimSpace(name); name == "" {
		return
	}
	w.mu.Lock()
	w.outcomes[name]++
	w.mu.Unlock()
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Endpoints:   make([]RequestStats, 0, len(w.series)),
	}
	for _, endpoint := range slices.Sorted(maps.Keys(w.series)) {
		s := w.series[endpoint]
		if s.seen == 0 {
			continue
		}
		snap.Endpoints = append(snap.Endpoints, summarize(endpoint, s))
	}
	for _, name := range slices.Sorted(maps.Keys(w.outcomes)) {
		snap.Outcomes = append(snap.Outcomes, OutcomeCount{Name: name, Count: w.outcomes[name]})
	}
	return snap
}

func summarize(endpoint string, s *latencySeries) RequestStats {
	sorted := s.window()
	var total float64
	for _, v := range sorted {
		total += v
	}
	return RequestStats{
		Endpoint:    endpoint,
		Samples:     len(sorted),
		LastMS:      roundMS(s.newest()),
		AvgMS:       roundMS(total / float64(len(sorted))),
		P50MS:       roundMS(nearestRank(sorted, 50)),
		P95MS:       roundMS(nearestRank(sorted, 95)),
		P99MS:       roundMS(nearestRank(sorted, 99)),
		TargetP95MS: endpointTargets[endpoint],
	}
}

// nearestRank is the smallest sample with at least pct percent of the
// window at or below it. sorted must be ascending and non-empty.
func nearestRank(sorted []float64, pct int) float64 {
	rank := (pct*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}

func roundMS(v float64) float64 {
	return math.Round(v*100) / 100
}
