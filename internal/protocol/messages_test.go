package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","action":" speak ","text":"hello","ts_ms":456}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.Action != ActionSpeak || control.Text != "hello" {
		t.Fatalf("unexpected client control: %+v", control)
	}
	if control.TSMs != 456 {
		t.Fatalf("TSMs = %d, want %d", control.TSMs, 456)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsUnknownAction(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_control","action":"self_destruct"}`))
	if !errors.Is(err, ErrUnsupportedAction) {
		t.Fatalf("error = %v, want ErrUnsupportedAction", err)
	}
}

func TestParseClientMessageRejectsMissingAction(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_control"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseClientMessageRejectsGarbage(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func BenchmarkParseClientMessageControl(b *testing.B) {
	raw := []byte(`{"type":"client_control","action":"toggle_recording","ts_ms":123456}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseClientMessage(raw); err != nil {
			b.Fatal(err)
		}
	}
}
