package voice

import (
	"context"
	"errors"
	"unicode/utf8"
)

// MaxSynthesisChars caps the text accepted for one synthesis request.
const MaxSynthesisChars = 5000

// clampText enforces MaxSynthesisChars without splitting a multi-byte rune
// at the cut point.
func clampText(text string) string {
	if len(text) <= MaxSynthesisChars {
		return text
	}
	cut := MaxSynthesisChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Typed synthesis failures. The queue falls back on any of these; callers
// never see them unless the fallback fails too.
var (
	ErrSynthUnauthorized = errors.New("tts provider rejected credentials")
	ErrSynthRateLimited  = errors.New("tts provider rate limited")
	ErrSynthTimeout      = errors.New("tts provider timed out")
	ErrSynthMalformed    = errors.New("tts provider returned malformed audio")
)

// Clip is one synthesized utterance as raw mono PCM16.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID string) (Clip, error)
}

// Sink plays raw PCM on the physical output device. Callers hold an arbiter
// lease for the duration of Play.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Transport is one live bidirectional session to the realtime speech service.
// Events carries parsed protocol values and is closed when the connection
// drops for any reason.
type Transport interface {
	Send(msg any) error
	Events() <-chan any
	Close() error
}

// Dialer establishes transports. The supervisor owns retry policy; a Dialer
// attempt either completes a handshake or fails.
type Dialer interface {
	Dial(ctx context.Context, token string) (Transport, error)
}

// CredentialProvider supplies a short-lived session token immediately before
// each connection attempt. Tokens are never persisted or logged.
type CredentialProvider interface {
	SessionToken(ctx context.Context) (string, error)
}

// TokenFunc adapts a plain function to CredentialProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) SessionToken(ctx context.Context) (string, error) { return f(ctx) }

// EntitlementGate answers whether a caller may start a session at all. A
// negative answer prevents any connection attempt.
type EntitlementGate interface {
	CanStartSession(ctx context.Context, callerID string) (bool, error)
}

