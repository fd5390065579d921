package statusfeed

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/antoniostano/voicedesk/internal/observability"
	"github.com/antoniostano/voicedesk/internal/protocol"
)

func TestHubFansOutStatus(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	h := NewHub(zaptest.NewLogger(t), metrics)
	h.SetStateSource(func() string { return "recording" })

	a, cancelA := h.Subscribe(4)
	b, cancelB := h.Subscribe(4)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StatusSubscribed))

	h.ShowStatus("Recording... 0.2s")
	h.ShowTranscript("hello world")

	for _, ch := range []<-chan any{a, b} {
		ev := <-ch
		status, ok := ev.(protocol.Status)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "Recording... 0.2s", status.Text)
		assert.Equal(t, "recording", status.State)

		ev = <-ch
		tr, ok := ev.(protocol.Transcript)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, "hello world", tr.Text)
	}
	assert.Equal(t, "Recording... 0.2s", h.Status())
	assert.Equal(t, "hello world", h.Transcript())

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	cancelB()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StatusSubscribed))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(nil, nil)
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.ShowStatus("one")
	h.ShowStatus("two")
	assert.Equal(t, 1, h.Dropped())
	ev := <-ch
	assert.Equal(t, "one", ev.(protocol.Status).Text)
	assert.Equal(t, "two", h.Status())
}
