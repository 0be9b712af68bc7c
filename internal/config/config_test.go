package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SampleRate != 24000 {
		t.Fatalf("SampleRate = %d, want 24000", cfg.SampleRate)
	}
	if cfg.FrameDuration != 100*time.Millisecond {
		t.Fatalf("FrameDuration = %s, want 100ms", cfg.FrameDuration)
	}
	if cfg.ReconnectMaxAttempts != 3 {
		t.Fatalf("ReconnectMaxAttempts = %d, want 3", cfg.ReconnectMaxAttempts)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Fatalf("HandshakeTimeout = %s, want 10s", cfg.HandshakeTimeout)
	}
	if cfg.MinCommitDuration != 100*time.Millisecond {
		t.Fatalf("MinCommitDuration = %s, want 100ms", cfg.MinCommitDuration)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VAD_SILENCE_DEBOUNCE", "1.2s")
	t.Setenv("REALTIME_RECONNECT_MAX_ATTEMPTS", "5")
	t.Setenv("VAD_NOISE_GATE_DB", "-35.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SilenceDebounce != 1200*time.Millisecond {
		t.Fatalf("SilenceDebounce = %s, want 1.2s", cfg.SilenceDebounce)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Fatalf("ReconnectMaxAttempts = %d, want 5", cfg.ReconnectMaxAttempts)
	}
	if cfg.NoiseGateDB != -35.5 {
		t.Fatalf("NoiseGateDB = %v, want -35.5", cfg.NoiseGateDB)
	}
}

func TestLoadRejectsInvalidVADWindow(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VAD_SPEECH_WINDOW_VOTES", "9")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want votes > window rejected")
	}
}

func TestLoadRejectsShortDebounce(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("VAD_SILENCE_DEBOUNCE", "50ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want short debounce rejected")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_LOG_LEVEL",
		"APP_LOG_PRETTY",
		"REALTIME_WS_URL",
		"REALTIME_MODEL_ID",
		"REALTIME_HANDSHAKE_TIMEOUT",
		"REALTIME_RECONNECT_MAX_ATTEMPTS",
		"REALTIME_RECONNECT_BACKOFF_BASE",
		"REALTIME_RECONNECT_BACKOFF_CAP",
		"AUDIO_SAMPLE_RATE",
		"AUDIO_FRAME_DURATION",
		"AUDIO_FRAME_CHANNEL_DEPTH",
		"VAD_NOISE_GATE_DB",
		"VAD_SPEECH_WINDOW_FRAMES",
		"VAD_SPEECH_WINDOW_VOTES",
		"VAD_SILENCE_DEBOUNCE",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_BASE_URL",
		"TTS_VOICE_ID",
		"TTS_MODEL_ID",
		"TTS_SYNTHESIS_TIMEOUT",
		"FALLBACK_ESPEAK_CLI",
		"FALLBACK_ESPEAK_VOICE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
