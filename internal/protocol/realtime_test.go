package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewSessionUpdateDisablesServerVAD(t *testing.T) {
	msg := NewSessionUpdate(24000)
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	session, ok := decoded["session"].(map[string]any)
	if !ok {
		t.Fatalf("session payload missing")
	}
	td, present := session["turn_detection"]
	if !present {
		t.Fatalf("turn_detection key absent, want explicit null")
	}
	if td != nil {
		t.Fatalf("turn_detection = %v, want null", td)
	}
	if session["input_audio_format"] != "pcm16" {
		t.Fatalf("input_audio_format = %v, want pcm16", session["input_audio_format"])
	}
}

func TestParseServerEventTranscriptionCompleted(t *testing.T) {
	raw := []byte(`{"type":"transcription.completed","transcript":"hello there"}`)
	evt, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	msg, ok := evt.(TranscriptionCompleted)
	if !ok {
		t.Fatalf("event type = %T, want TranscriptionCompleted", evt)
	}
	if msg.Transcript != "hello there" {
		t.Fatalf("Transcript = %q, want %q", msg.Transcript, "hello there")
	}
}

func TestParseServerEventAudioDelta(t *testing.T) {
	raw := []byte(`{"type":"response.audio.delta","response_id":"r1","delta":"cGNt"}`)
	evt, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	msg, ok := evt.(ResponseAudioDelta)
	if !ok {
		t.Fatalf("event type = %T, want ResponseAudioDelta", evt)
	}
	if msg.AudioBase64 != "cGNt" {
		t.Fatalf("AudioBase64 = %q, want %q", msg.AudioBase64, "cGNt")
	}
}

func TestParseServerEventError(t *testing.T) {
	raw := []byte(`{"type":"error","error":{"code":"buffer_too_small","message":"buffer has 40ms of audio"}}`)
	evt, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent() error = %v", err)
	}
	msg, ok := evt.(ServerError)
	if !ok {
		t.Fatalf("event type = %T, want ServerError", evt)
	}
	if msg.Error.Code != "buffer_too_small" {
		t.Fatalf("Code = %q, want buffer_too_small", msg.Error.Code)
	}
}

func TestParseServerEventUnsupported(t *testing.T) {
	if _, err := ParseServerEvent([]byte(`{"type":"rate.limits"}`)); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}
