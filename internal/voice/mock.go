package voice

import (
	"context"
	"math"
	"time"

	"github.com/mirelabs/mira/internal/audio"
)

// MockSynthesizer produces a deterministic tone whose length tracks the text.
// Used when no TTS credentials are configured so the pipeline stays runnable
// end to end in development.
type MockSynthesizer struct {
	SampleRate int
	// Latency simulates provider response time. Zero means instant.
	Latency time.Duration
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, _, _ string) (Clip, error) {
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	rate := m.SampleRate
	if rate <= 0 {
		rate = 24000
	}

	// 40ms per character, capped at 3s.
	dur := time.Duration(len(text)) * 40 * time.Millisecond
	if dur > 3*time.Second {
		dur = 3 * time.Second
	}
	if dur < 100*time.Millisecond {
		dur = 100 * time.Millisecond
	}

	n := int(float64(rate) * dur.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return Clip{PCM: audio.Frame{Samples: samples}.PCMBytes(), SampleRate: rate}, nil
}
