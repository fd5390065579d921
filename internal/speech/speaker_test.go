package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antoniostano/voicedesk/internal/backend"
)

type fakeClient struct {
	ttsCalls []backend.TTSRequest
	tts      backend.TTSResponse
	ttsErr   error
	hello    backend.HelloResponse
	helloErr error
	health   backend.HealthResponse
}

func (c *fakeClient) Hello(context.Context) (backend.HelloResponse, error) {
	return c.hello, c.helloErr
}

func (c *fakeClient) Health(context.Context) (backend.HealthResponse, error) {
	return c.health, nil
}

func (c *fakeClient) TextToSpeech(_ context.Context, req backend.TTSRequest) (backend.TTSResponse, error) {
	c.ttsCalls = append(c.ttsCalls, req)
	return c.tts, c.ttsErr
}

type fakePlayer struct {
	source string
	plays  int
}

func (p *fakePlayer) SetSource(url string) { p.source = url }

func (p *fakePlayer) Play(context.Context) error {
	p.plays++
	return nil
}

type lastStatus struct{ text string }

func (d *lastStatus) ShowStatus(text string) { d.text = text }

func newSpeaker(c *fakeClient, p *fakePlayer, d *lastStatus) *Speaker {
	return New(Options{Client: c, Player: p, Display: d})
}

func TestSpeakPlaysReturnedURL(t *testing.T) {
	c := &fakeClient{tts: backend.TTSResponse{AudioURL: "/x.mp3"}}
	p := &fakePlayer{}
	d := &lastStatus{}

	got := newSpeaker(c, p, d).Speak(context.Background(), "hello")
	assert.Equal(t, "/x.mp3", p.source)
	assert.Equal(t, 1, p.plays)
	assert.Equal(t, "Audio generated successfully", got)
	assert.Equal(t, got, d.text)
	assert.Equal(t, []backend.TTSRequest{{Text: "hello"}}, c.ttsCalls)
}

func TestSpeakEmptyInputMakesNoRequest(t *testing.T) {
	c := &fakeClient{}
	p := &fakePlayer{}
	d := &lastStatus{}

	for _, text := range []string{"", "   \n\t"} {
		got := newSpeaker(c, p, d).Speak(context.Background(), text)
		assert.Equal(t, StatusEmptyText, got)
	}
	assert.Empty(t, c.ttsCalls)
	assert.Equal(t, StatusEmptyText, d.text)
	assert.Empty(t, p.source)
}

func TestSpeakWithoutAudioURL(t *testing.T) {
	c := &fakeClient{}
	p := &fakePlayer{}
	d := &lastStatus{}
	assert.Equal(t, StatusNoAudioURL, newSpeaker(c, p, d).Speak(context.Background(), "hello"))
	assert.Equal(t, 0, p.plays)
}

func TestSpeakReportsHTTPError(t *testing.T) {
	c := &fakeClient{ttsErr: &backend.HTTPError{Status: 500}}
	d := &lastStatus{}
	got := newSpeaker(c, &fakePlayer{}, d).Speak(context.Background(), "hello")
	assert.Equal(t, "Error: HTTP error! status: 500", got)
}

func TestSpeakSendsVoiceSettings(t *testing.T) {
	c := &fakeClient{tts: backend.TTSResponse{AudioURL: "/a.mp3"}}
	s := New(Options{Client: c, Player: &fakePlayer{}, VoiceID: "en-US-ken", Style: "Conversational"})
	got := s.Speak(context.Background(), "  hi  ")
	assert.Equal(t, "Audio generated successfully (voice en-US-ken)", got)
	assert.Equal(t, []backend.TTSRequest{{Text: "hi", VoiceID: "en-US-ken", Style: "Conversational"}}, c.ttsCalls)
}

func TestHelloAndHealth(t *testing.T) {
	c := &fakeClient{hello: backend.HelloResponse{Message: "Hello from the server"}, health: backend.HealthResponse{Status: "AI Voice Agent Running!"}}
	d := &lastStatus{}
	s := newSpeaker(c, &fakePlayer{}, d)

	assert.Equal(t, "Hello from the server", s.Hello(context.Background()))
	assert.Equal(t, "AI Voice Agent Running!", s.Health(context.Background()))

	c.helloErr = errors.New("connection refused")
	assert.Equal(t, StatusConnectErr, s.Hello(context.Background()))
	assert.Equal(t, StatusConnectErr, d.text)
}

func TestCheckText(t *testing.T) {
	got, err := CheckText("  hello there \n")
	assert.NoError(t, err)
	assert.Equal(t, "hello there", got)

	for _, in := range []string{"", "   ", "\t\n"} {
		_, err := CheckText(in)
		assert.ErrorIs(t, err, ErrEmptyText, "input %q", in)
	}
}
