package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mirelabs/mira/internal/audio"
	"github.com/mirelabs/mira/internal/config"
	"github.com/mirelabs/mira/internal/httpapi"
	"github.com/mirelabs/mira/internal/observability"
	"github.com/mirelabs/mira/internal/policy"
	"github.com/mirelabs/mira/internal/session"
	"github.com/mirelabs/mira/internal/voice"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("error", true).Fatal().Err(err).Msg("config error")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogPretty)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	arbiter := audio.NewArbiter()
	capture := audio.NewCapture(audio.CaptureConfig{
		SampleRate:    cfg.SampleRate,
		FrameDuration: cfg.FrameDuration,
		ChannelDepth:  cfg.FrameChannelDepth,
	}, metrics.FramesDropped.Inc)
	sink := audio.NewPlayer()

	var primary voice.Synthesizer
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
		primary = voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
		}, observability.Component(logger, "tts"))
		logger.Info().Msg("tts provider: elevenlabs")
	} else {
		primary = &voice.MockSynthesizer{SampleRate: cfg.SampleRate}
		logger.Info().Msg("tts provider: mock (no elevenlabs key)")
	}
	fallback := voice.NewLocalTTSSynthesizer(voice.LocalTTSConfig{
		CLI:   cfg.EspeakCLI,
		Voice: cfg.EspeakVoice,
	}, observability.Component(logger, "tts-fallback"))

	queue := voice.NewSynthQueue(voice.SynthQueueConfig{
		VoiceID:          cfg.TTSVoiceID,
		ModelID:          cfg.TTSModelID,
		SynthesisTimeout: cfg.SynthesisTimeout,
	}, primary, fallback, sink, arbiter, metrics, observability.Component(logger, "synthqueue"))

	dialer := voice.NewWSDialer(voice.WSDialerConfig{
		URL:     cfg.RealtimeWSURL,
		ModelID: cfg.RealtimeModelID,
	}, observability.Component(logger, "transport"))

	apiKey := cfg.RealtimeAPIKey
	creds := voice.TokenFunc(func(ctx context.Context) (string, error) {
		if apiKey == "" {
			return "", errors.New("REALTIME_API_KEY is not set")
		}
		return apiKey, nil
	})

	supervisor := voice.NewSupervisor(voice.SupervisorConfig{
		MaxAttempts:      cfg.ReconnectMaxAttempts,
		HandshakeTimeout: cfg.HandshakeTimeout,
		BackoffBase:      cfg.ReconnectBackoffBase,
		BackoffCap:       cfg.ReconnectBackoffCap,
	}, dialer, creds, metrics, observability.Component(logger, "supervisor"))

	gate := policy.NewCallerGate(cfg.CallerAllowlist)
	status := voice.NewStatusHub()

	pipeline := voice.NewPipeline(voice.ClientConfig{
		SampleRate:        cfg.SampleRate,
		MinCommitDuration: cfg.MinCommitDuration,
		Detector: voice.DetectorConfig{
			NoiseGateDB:     cfg.NoiseGateDB,
			WindowFrames:    cfg.SpeechWindowFrames,
			WindowVotes:     cfg.SpeechWindowVotes,
			SilenceDebounce: cfg.SilenceDebounce,
		},
	}, capture, supervisor, queue, arbiter, sink, gate, status, metrics, observability.Component(logger, "pipeline"))

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		logger.Info().Str("session_id", s.ID).Msg("session expired, stopping pipeline")
		if err := pipeline.Stop(); err != nil && !errors.Is(err, voice.ErrPipelineInactive) {
			logger.Warn().Err(err).Msg("pipeline stop on expiry failed")
		}
	})

	api := httpapi.New(cfg, sessions, pipeline, observability.Component(logger, "httpapi"))
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)
	go api.WatchPipeline(runCtx)

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	if err := pipeline.Stop(); err != nil && !errors.Is(err, voice.ErrPipelineInactive) {
		logger.Warn().Err(err).Msg("pipeline stop failed")
	}
	runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
}
