package recording

import (
	"errors"
	"testing"
	"time"
)

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func equalKinds(a, b []EffectKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStartOnlyFromIdle(t *testing.T) {
	next, effects := Start(Idle)
	if next != Requesting {
		t.Fatalf("Start(Idle) state = %v, want %v", next, Requesting)
	}
	if want := []EffectKind{ShowStatus, RequestDevice}; !equalKinds(kinds(effects), want) {
		t.Fatalf("Start(Idle) effects = %v, want %v", kinds(effects), want)
	}
	if effects[0].Status != StatusRequesting {
		t.Fatalf("status = %q, want %q", effects[0].Status, StatusRequesting)
	}

	for _, s := range []State{Requesting, Recording, Stopping} {
		next, effects := Start(s)
		if next != s || len(effects) != 0 {
			t.Fatalf("Start(%v) = %v, %v; want no-op", s, next, kinds(effects))
		}
	}
}

func TestStopOnlyFromRecording(t *testing.T) {
	next, effects := Stop(Recording)
	if next != Stopping {
		t.Fatalf("Stop(Recording) state = %v, want %v", next, Stopping)
	}
	if want := []EffectKind{FinalizeStream}; !equalKinds(kinds(effects), want) {
		t.Fatalf("Stop effects = %v, want %v", kinds(effects), want)
	}
	for _, s := range []State{Idle, Requesting, Stopping} {
		next, effects := Stop(s)
		if next != s || len(effects) != 0 {
			t.Fatalf("Stop(%v) = %v, %v; want no-op", s, next, kinds(effects))
		}
	}
}

func TestGrantAndDenial(t *testing.T) {
	next, effects := OnGranted(Requesting)
	if next != Recording {
		t.Fatalf("OnGranted state = %v, want %v", next, Recording)
	}
	if want := []EffectKind{StartTicker, ShowStatus}; !equalKinds(kinds(effects), want) {
		t.Fatalf("OnGranted effects = %v, want %v", kinds(effects), want)
	}
	if effects[1].Status != "Recording... 0.0s" {
		t.Fatalf("status = %q", effects[1].Status)
	}

	next, effects = OnDenied(Requesting, errors.New("NotAllowedError"))
	if next != Idle {
		t.Fatalf("OnDenied state = %v, want %v", next, Idle)
	}
	if len(effects) != 1 || effects[0].Status != "Microphone permission denied: NotAllowedError" {
		t.Fatalf("OnDenied effects = %+v", effects)
	}

	if next, effects := OnGranted(Idle); next != Idle || len(effects) != 0 {
		t.Fatalf("OnGranted(Idle) = %v, %v; want no-op", next, kinds(effects))
	}
}

func TestOnChunkSkipsEmptyAndInactive(t *testing.T) {
	if _, effects := OnChunk(Recording, nil); len(effects) != 0 {
		t.Fatalf("empty chunk produced effects %v", kinds(effects))
	}
	if _, effects := OnChunk(Idle, []byte("x")); len(effects) != 0 {
		t.Fatalf("chunk while idle produced effects %v", kinds(effects))
	}
	for _, s := range []State{Recording, Stopping} {
		next, effects := OnChunk(s, []byte("abc"))
		if next != s || len(effects) != 1 || effects[0].Kind != AppendChunk || string(effects[0].Data) != "abc" {
			t.Fatalf("OnChunk(%v) = %v, %+v", s, next, effects)
		}
	}
}

func TestOnTickRoundsToTenth(t *testing.T) {
	_, effects := OnTick(Recording, 1249*time.Millisecond)
	if len(effects) != 1 || effects[0].Status != "Recording... 1.2s" {
		t.Fatalf("OnTick effects = %+v", effects)
	}
	_, effects = OnTick(Recording, 1250*time.Millisecond)
	if effects[0].Status != "Recording... 1.3s" {
		t.Fatalf("status = %q, want %q", effects[0].Status, "Recording... 1.3s")
	}
	if _, effects := OnTick(Stopping, time.Second); len(effects) != 0 {
		t.Fatalf("tick while stopping produced %v", kinds(effects))
	}
}

func TestFinalizeOrdersCleanupBeforeProcessing(t *testing.T) {
	next, effects := OnFinalize(Stopping)
	if next != Stopping {
		t.Fatalf("OnFinalize state = %v, want %v", next, Stopping)
	}
	want := []EffectKind{CancelTicker, AssembleRecording, ClearBuffer, ReleasePlayback, CreatePlayback, ShowStatus, Process}
	if !equalKinds(kinds(effects), want) {
		t.Fatalf("OnFinalize effects = %v, want %v", kinds(effects), want)
	}
	if next, effects := OnFinalize(Idle); next != Idle || len(effects) != 0 {
		t.Fatalf("OnFinalize(Idle) = %v, %v; want no-op", next, kinds(effects))
	}
}

func TestProcessedReleasesDeviceAndIdles(t *testing.T) {
	next, effects := OnProcessed(Stopping, "Uploaded a.webm (audio/webm, 3 bytes)")
	if next != Idle {
		t.Fatalf("OnProcessed state = %v, want %v", next, Idle)
	}
	if want := []EffectKind{ReleaseDevice, ShowStatus}; !equalKinds(kinds(effects), want) {
		t.Fatalf("OnProcessed effects = %v, want %v", kinds(effects), want)
	}
}

func TestOnErrorTearsDown(t *testing.T) {
	next, effects := OnError(Stopping, "Upload", errors.New("HTTP error! status: 500"))
	if next != Idle {
		t.Fatalf("OnError state = %v, want %v", next, Idle)
	}
	want := []EffectKind{CancelTicker, ClearBuffer, ReleaseDevice, ShowStatus}
	if !equalKinds(kinds(effects), want) {
		t.Fatalf("OnError effects = %v, want %v", kinds(effects), want)
	}
	if got := effects[3].Status; got != "Upload failed: HTTP error! status: 500" {
		t.Fatalf("status = %q", got)
	}
	if next, effects := OnError(Idle, "Upload", errors.New("x")); next != Idle || len(effects) != 0 {
		t.Fatalf("OnError(Idle) = %v, %v; want no-op", next, kinds(effects))
	}
}
