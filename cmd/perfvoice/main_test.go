package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antoniostano/voicedesk/internal/mockapi"
	"github.com/antoniostano/voicedesk/internal/observability"
)

func TestParseFlagsSplitsTexts(t *testing.T) {
	cfg, err := parseFlags(flag.NewFlagSet("perfvoice", flag.ContinueOnError), []string{
		"-base-url", "http://backend:8000/",
		"-texts", " one | |two",
		"-timeout-ms", "10",
	})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.baseURL != "http://backend:8000" {
		t.Fatalf("baseURL = %q", cfg.baseURL)
	}
	if len(cfg.texts) != 2 || cfg.texts[0] != "one" || cfg.texts[1] != "two" {
		t.Fatalf("texts = %q, want [one two]", cfg.texts)
	}
	if cfg.timeout.Milliseconds() != 1000 {
		t.Fatalf("timeout = %s, want clamp to 1s", cfg.timeout)
	}
}

func TestParseFlagsRejectsBadInput(t *testing.T) {
	cases := [][]string{
		{"-turns", "0"},
		{"-texts", " | "},
		{"-base-url", " "},
	}
	for _, args := range cases {
		if _, err := parseFlags(flag.NewFlagSet("perfvoice", flag.ContinueOnError), args); err == nil {
			t.Fatalf("parseFlags(%q) expected error", args)
		}
	}
}

func TestRunAgainstMockBackend(t *testing.T) {
	ts := httptest.NewServer(mockapi.New(nil).Router())
	defer ts.Close()

	cfg, err := parseFlags(flag.NewFlagSet("perfvoice", flag.ContinueOnError), []string{
		"-base-url", ts.URL,
		"-turns", "3",
		"-inter-turn-ms", "0",
		"-texts", "hello|again",
	})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v\n%s", err, out.String())
	}

	// The JSON summary follows the progress lines.
	idx := bytes.IndexByte(out.Bytes(), '{')
	if idx < 0 {
		t.Fatalf("no summary in output:\n%s", out.String())
	}
	var snap observability.LatencySnapshot
	if err := json.Unmarshal(out.Bytes()[idx:], &snap); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	samples := map[string]int{}
	for _, ep := range snap.Endpoints {
		samples[ep.Endpoint] = ep.Samples
	}
	if samples["text_to_speech"] != 3 || samples["echo"] != 3 || samples["audio"] != 6 {
		t.Fatalf("samples = %v", samples)
	}
}

func TestRunFailsWhenBackendDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg, err := parseFlags(flag.NewFlagSet("perfvoice", flag.ContinueOnError), []string{"-base-url", ts.URL, "-verbose=false"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unavailable backend")
	}
}
