package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies realtime speech-service payload variants.
type MessageType string

const (
	// Outbound control messages.
	TypeSessionUpdate  MessageType = "session.update"
	TypeAudioAppend    MessageType = "audio.append"
	TypeAudioCommit    MessageType = "audio.commit"
	TypeResponseCreate MessageType = "response.create"

	// Inbound server events.
	TypeSpeechStarted           MessageType = "speech.started"
	TypeSpeechStopped           MessageType = "speech.stopped"
	TypeTranscriptionCompleted  MessageType = "transcription.completed"
	TypeResponseTranscriptDelta MessageType = "response.audio_transcript.delta"
	TypeResponseTranscriptDone  MessageType = "response.audio_transcript.done"
	TypeResponseAudioDelta      MessageType = "response.audio.delta"
	TypeError                   MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// SessionConfig is sent once after the handshake. TurnDetection is always nil:
// endpointing is driven by the client-side detector, never by the service.
type SessionConfig struct {
	InputAudioFormat string `json:"input_audio_format"`
	SampleRate       int    `json:"sample_rate"`
	Channels         int    `json:"channels"`
	TurnDetection    any    `json:"turn_detection"`
}

type SessionUpdate struct {
	Type    MessageType   `json:"type"`
	Session SessionConfig `json:"session"`
}

func NewSessionUpdate(sampleRate int) SessionUpdate {
	return SessionUpdate{
		Type: TypeSessionUpdate,
		Session: SessionConfig{
			InputAudioFormat: "pcm16",
			SampleRate:       sampleRate,
			Channels:         1,
			TurnDetection:    nil,
		},
	}
}

type AudioAppend struct {
	Type        MessageType `json:"type"`
	AudioBase64 string      `json:"audio"`
}

type AudioCommit struct {
	Type MessageType `json:"type"`
}

type ResponseCreate struct {
	Type MessageType `json:"type"`
}

type SpeechStarted struct {
	Type         MessageType `json:"type"`
	AudioStartMS int64       `json:"audio_start_ms"`
}

type SpeechStopped struct {
	Type       MessageType `json:"type"`
	AudioEndMS int64       `json:"audio_end_ms"`
}

type TranscriptionCompleted struct {
	Type       MessageType `json:"type"`
	Transcript string      `json:"transcript"`
}

type ResponseTranscriptDelta struct {
	Type       MessageType `json:"type"`
	ResponseID string      `json:"response_id"`
	Delta      string      `json:"delta"`
}

type ResponseTranscriptDone struct {
	Type       MessageType `json:"type"`
	ResponseID string      `json:"response_id"`
	Transcript string      `json:"transcript"`
}

type ResponseAudioDelta struct {
	Type        MessageType `json:"type"`
	ResponseID  string      `json:"response_id"`
	AudioBase64 string      `json:"delta"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerError struct {
	Type  MessageType `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ParseServerEvent decodes one inbound frame into its typed event.
func ParseServerEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeSpeechStarted:
		var msg SpeechStarted
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSpeechStopped:
		var msg SpeechStopped
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTranscriptionCompleted:
		var msg TranscriptionCompleted
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeResponseTranscriptDelta:
		var msg ResponseTranscriptDelta
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeResponseTranscriptDone:
		var msg ResponseTranscriptDone
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeResponseAudioDelta:
		var msg ResponseAudioDelta
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeError:
		var msg ServerError
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Error.Code == "" {
			return nil, errors.New("invalid error event")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
