package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/antoniostano/voicedesk/internal/media"
	"github.com/antoniostano/voicedesk/internal/observability"
)

type recordingSink struct {
	mu    sync.Mutex
	clips []media.Blob
	err   error
}

func (s *recordingSink) Play(_ context.Context, clip media.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.clips = append(s.clips, clip)
	return nil
}

type staticFetcher struct {
	urls []string
	blob media.Blob
	err  error
}

func (f *staticFetcher) FetchAudio(_ context.Context, url string) (media.Blob, error) {
	f.urls = append(f.urls, url)
	return f.blob, f.err
}

func TestRegistryCreateRevoke(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	r := NewRegistry(metrics)

	a := r.Create(media.Blob{Data: []byte("a"), MIMEType: media.MIMEWebM})
	b := r.Create(media.Blob{Data: []byte("b"), MIMEType: media.MIMEWebM})
	assert.True(t, strings.HasPrefix(a, "blob:"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, r.Live())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LiveObjectURLs))

	r.Revoke(a)
	r.Revoke(a)
	r.Revoke("blob:unknown")
	assert.Equal(t, 1, r.Live())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LiveObjectURLs))

	_, ok := r.Resolve(a)
	assert.False(t, ok)
	got, ok := r.Resolve(b)
	require.True(t, ok)
	assert.Equal(t, "b", string(got.Data))
}

func TestElementPlaysObjectURL(t *testing.T) {
	r := NewRegistry(nil)
	sink := &recordingSink{}
	fetcher := &staticFetcher{}
	el := NewElement(zaptest.NewLogger(t), r, fetcher, sink)

	url := r.Create(media.Blob{Data: []byte("pcm"), MIMEType: media.MIMEOggOpus})
	el.SetSource(url)
	require.NoError(t, el.Play(context.Background()))

	require.Len(t, sink.clips, 1)
	assert.Equal(t, "pcm", string(sink.clips[0].Data))
	assert.Empty(t, fetcher.urls)
	assert.Equal(t, 1, el.Plays())
}

func TestElementFetchesRemoteSource(t *testing.T) {
	sink := &recordingSink{}
	fetcher := &staticFetcher{blob: media.Blob{Data: []byte("mp3"), MIMEType: media.MIMEMPEG}}
	el := NewElement(nil, NewRegistry(nil), fetcher, sink)

	el.SetSource(" /x.mp3 ")
	assert.Equal(t, "/x.mp3", el.Source())
	require.NoError(t, el.Play(context.Background()))
	assert.Equal(t, []string{"/x.mp3"}, fetcher.urls)
	require.Len(t, sink.clips, 1)
}

func TestElementErrors(t *testing.T) {
	r := NewRegistry(nil)
	el := NewElement(nil, r, &staticFetcher{err: errors.New("offline")}, &recordingSink{})

	assert.ErrorIs(t, el.Play(context.Background()), ErrNoSource)

	url := r.Create(media.Blob{Data: []byte("x")})
	r.Revoke(url)
	el.SetSource(url)
	assert.ErrorIs(t, el.Play(context.Background()), ErrRevokedSource)

	el.SetSource("http://example.invalid/a.mp3")
	assert.EqualError(t, el.Play(context.Background()), "offline")
	assert.Equal(t, 0, el.Plays())
}

func TestFileSinkWritesClip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewFileSink(zaptest.NewLogger(t), dir)

	require.NoError(t, sink.Play(context.Background(), media.Blob{Data: []byte("OggS"), MIMEType: media.MIMEOggOpus}))
	path := sink.LastPath()
	assert.Equal(t, ".ogg", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data))
}
