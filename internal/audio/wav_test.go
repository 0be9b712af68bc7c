package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestWAVEncodeDecodeRoundTrip(t *testing.T) {
	pcm := Frame{Samples: []int16{0, 100, -100, 32767, -32768}}.PCMBytes()

	wav, err := EncodeWAVPCM16LE(pcm, 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}

	gotPCM, rate, err := DecodeWAVPCM16LE(wav)
	if err != nil {
		t.Fatalf("DecodeWAVPCM16LE() error = %v", err)
	}
	if rate != 24000 {
		t.Fatalf("sample rate = %d, want 24000", rate)
	}
	if !bytes.Equal(gotPCM, pcm) {
		t.Fatalf("decoded PCM differs from input")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAVPCM16LE([]byte("definitely not a wav header at all")); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("error = %v, want ErrNotWAV", err)
	}
}

func TestDecodeWAVRejectsStereo(t *testing.T) {
	wav, err := EncodeWAVPCM16LE([]byte{1, 0, 2, 0}, 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	// Flip the channel count in the fmt chunk.
	wav[22] = 2
	if _, _, err := DecodeWAVPCM16LE(wav); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("error = %v, want ErrNotWAV for stereo", err)
	}
}
