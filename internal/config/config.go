package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion voice pipeline.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string
	LogPretty        bool

	AllowAnyOrigin bool

	// CallerAllowlist restricts who may start sessions. Empty means open.
	CallerAllowlist []string

	SessionInactivityTimeout time.Duration

	// Realtime speech-service session.
	RealtimeWSURL        string
	RealtimeModelID      string
	RealtimeAPIKey       string
	HandshakeTimeout     time.Duration
	ReconnectMaxAttempts int
	ReconnectBackoffBase time.Duration
	ReconnectBackoffCap  time.Duration

	// Audio capture format.
	SampleRate        int
	FrameDuration     time.Duration
	FrameChannelDepth int

	// Client-driven voice activity detection.
	NoiseGateDB        float64
	SpeechWindowFrames int
	SpeechWindowVotes  int
	SilenceDebounce    time.Duration
	MinCommitDuration  time.Duration

	// Primary TTS provider.
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	TTSVoiceID        string
	TTSModelID        string
	SynthesisTimeout  time.Duration

	// Local fallback synthesis.
	EspeakCLI   string
	EspeakVoice string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "mira"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		AllowAnyOrigin:   false,

		RealtimeWSURL:   envOrDefault("REALTIME_WS_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModelID: envOrDefault("REALTIME_MODEL_ID", "gpt-4o-realtime-preview"),
		RealtimeAPIKey:  trimmedEnv("REALTIME_API_KEY"),

		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Default to a warm female premade voice for the Mira companion.
		TTSVoiceID:       envOrDefault("TTS_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		TTSModelID:       envOrDefault("TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsAPIKey: trimmedEnv("ELEVENLABS_API_KEY"),

		EspeakCLI:   envOrDefault("FALLBACK_ESPEAK_CLI", "espeak-ng"),
		EspeakVoice: envOrDefault("FALLBACK_ESPEAK_VOICE", "en-us"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		HandshakeTimeout:         10 * time.Second,
		ReconnectMaxAttempts:     3,
		ReconnectBackoffBase:     500 * time.Millisecond,
		ReconnectBackoffCap:      4 * time.Second,
		SampleRate:               24000,
		FrameDuration:            100 * time.Millisecond,
		FrameChannelDepth:        32,
		NoiseGateDB:              -40,
		SpeechWindowFrames:       5,
		SpeechWindowVotes:        3,
		SilenceDebounce:          1400 * time.Millisecond,
		MinCommitDuration:        100 * time.Millisecond,
		SynthesisTimeout:         8 * time.Second,
	}

	if raw := trimmedEnv("APP_CALLER_ALLOWLIST"); raw != "" {
		for _, caller := range strings.Split(raw, ",") {
			if caller = strings.TrimSpace(caller); caller != "" {
				cfg.CallerAllowlist = append(cfg.CallerAllowlist, caller)
			}
		}
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogPretty, err = boolFromEnv("APP_LOG_PRETTY", cfg.LogPretty)
	if err != nil {
		return Config{}, err
	}
	cfg.HandshakeTimeout, err = durationFromEnv("REALTIME_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectMaxAttempts, err = intFromEnv("REALTIME_RECONNECT_MAX_ATTEMPTS", cfg.ReconnectMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectBackoffBase, err = durationFromEnv("REALTIME_RECONNECT_BACKOFF_BASE", cfg.ReconnectBackoffBase)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectBackoffCap, err = durationFromEnv("REALTIME_RECONNECT_BACKOFF_CAP", cfg.ReconnectBackoffCap)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("AUDIO_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameDuration, err = durationFromEnv("AUDIO_FRAME_DURATION", cfg.FrameDuration)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameChannelDepth, err = intFromEnv("AUDIO_FRAME_CHANNEL_DEPTH", cfg.FrameChannelDepth)
	if err != nil {
		return Config{}, err
	}
	cfg.NoiseGateDB, err = floatFromEnv("VAD_NOISE_GATE_DB", cfg.NoiseGateDB)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechWindowFrames, err = intFromEnv("VAD_SPEECH_WINDOW_FRAMES", cfg.SpeechWindowFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechWindowVotes, err = intFromEnv("VAD_SPEECH_WINDOW_VOTES", cfg.SpeechWindowVotes)
	if err != nil {
		return Config{}, err
	}
	cfg.SilenceDebounce, err = durationFromEnv("VAD_SILENCE_DEBOUNCE", cfg.SilenceDebounce)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("TTS_SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("AUDIO_SAMPLE_RATE must be positive")
	}
	if cfg.FrameDuration < 10*time.Millisecond {
		return Config{}, fmt.Errorf("AUDIO_FRAME_DURATION must be at least 10ms")
	}
	if cfg.FrameChannelDepth <= 0 {
		return Config{}, fmt.Errorf("AUDIO_FRAME_CHANNEL_DEPTH must be positive")
	}
	if cfg.ReconnectMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("REALTIME_RECONNECT_MAX_ATTEMPTS must be positive")
	}
	if cfg.SpeechWindowFrames <= 0 || cfg.SpeechWindowVotes <= 0 || cfg.SpeechWindowVotes > cfg.SpeechWindowFrames {
		return Config{}, fmt.Errorf("VAD speech window votes must be in 1..window frames")
	}
	if cfg.SilenceDebounce < 200*time.Millisecond {
		return Config{}, fmt.Errorf("VAD_SILENCE_DEBOUNCE must be at least 200ms")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
