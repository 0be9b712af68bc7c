package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/reliability"
)

const elevenLabsSampleRate = 24000

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
}

// ElevenLabsSynthesizer is the primary TTS provider. It requests raw PCM so
// clips go straight to the playback sink without transcoding.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
	log    zerolog.Logger
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig, log zerolog.Logger) *ElevenLabsSynthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voiceID, modelID string) (Clip, error) {
	text = clampText(text)

	payload, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: modelID})
	if err != nil {
		return Clip{}, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=pcm_24000", s.cfg.BaseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Clip{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Clip{}, fmt.Errorf("%w: %v", ErrSynthTimeout, err)
		}
		return Clip{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Clip{}, ErrSynthUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return Clip{}, ErrSynthRateLimited
	case reliability.IsRetryableHTTPStatus(resp.StatusCode):
		return Clip{}, fmt.Errorf("elevenlabs status %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Clip{}, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, body)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("elevenlabs body: %w", err)
	}
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return Clip{}, ErrSynthMalformed
	}
	return Clip{PCM: pcm, SampleRate: elevenLabsSampleRate}, nil
}
