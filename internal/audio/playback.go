package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const playbackChunkSamples = 1024

// Player writes mono PCM16 to the default output device. Callers must hold a
// playback lease from the Arbiter before invoking Play; the player itself is
// policy-free.
type Player struct{}

func NewPlayer() *Player { return &Player{} }

// Play blocks until the buffer has been written or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("open output device: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	buf := make([]int16, playbackChunkSamples)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	samples := SamplesFromPCM(pcm)
	for off := 0; off < len(samples); off += playbackChunkSamples {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := copy(buf, samples[off:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}
