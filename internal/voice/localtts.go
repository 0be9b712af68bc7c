package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/audio"
)

type LocalTTSConfig struct {
	// CLI is the espeak-ng binary name or path.
	CLI   string
	Voice string
}

// LocalTTSSynthesizer shells out to espeak-ng. It is the offline fallback:
// lower quality, but it works with no network and no credentials.
type LocalTTSSynthesizer struct {
	cfg LocalTTSConfig
	log zerolog.Logger
}

func NewLocalTTSSynthesizer(cfg LocalTTSConfig, log zerolog.Logger) *LocalTTSSynthesizer {
	if cfg.CLI == "" {
		cfg.CLI = "espeak-ng"
	}
	if cfg.Voice == "" {
		cfg.Voice = "en-us"
	}
	return &LocalTTSSynthesizer{cfg: cfg, log: log}
}

// Synthesize ignores voiceID and modelID: the local engine has its own voice
// configured once at startup.
func (s *LocalTTSSynthesizer) Synthesize(ctx context.Context, text, _, _ string) (Clip, error) {
	text = clampText(text)

	cmd := exec.CommandContext(ctx, s.cfg.CLI, "-v", s.cfg.Voice, "--stdout", text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Clip{}, fmt.Errorf("%w: %v", ErrSynthTimeout, ctx.Err())
		}
		return Clip{}, fmt.Errorf("espeak: %w: %s", err, stderr.String())
	}

	pcm, rate, err := audio.DecodeWAVPCM16LE(stdout.Bytes())
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrSynthMalformed, err)
	}
	return Clip{PCM: pcm, SampleRate: rate}, nil
}
