package voice

import (
	"testing"
	"time"

	"github.com/mirelabs/mira/internal/audio"
)

func loudFrame(d time.Duration) audio.Frame {
	samples := make([]int16, 2400)
	for i := range samples {
		samples[i] = 16000
	}
	return audio.Frame{Samples: samples, Duration: d}
}

func quietFrame(d time.Duration) audio.Frame {
	return audio.Frame{Samples: make([]int16, 2400), Duration: d}
}

func testDetector() *Detector {
	return NewDetector(DetectorConfig{
		NoiseGateDB:     -40,
		WindowFrames:    5,
		WindowVotes:     3,
		SilenceDebounce: 1400 * time.Millisecond,
	})
}

func TestDetectorRequiresMajorityForSpeechStart(t *testing.T) {
	d := testDetector()
	frame := 100 * time.Millisecond

	// Two loud frames: below the 3-vote threshold.
	if ev := d.Observe(loudFrame(frame)); ev != VADNone {
		t.Fatalf("event after 1 loud frame = %v, want VADNone", ev)
	}
	if ev := d.Observe(loudFrame(frame)); ev != VADNone {
		t.Fatalf("event after 2 loud frames = %v, want VADNone", ev)
	}
	if d.State() != VADSilence {
		t.Fatalf("state = %v, want silence before majority", d.State())
	}

	if ev := d.Observe(loudFrame(frame)); ev != VADSpeechStart {
		t.Fatalf("event after 3 loud frames = %v, want VADSpeechStart", ev)
	}
	if d.State() != VADSpeech {
		t.Fatalf("state = %v, want speech", d.State())
	}
}

func TestDetectorIgnoresIsolatedSpike(t *testing.T) {
	d := testDetector()
	frame := 100 * time.Millisecond

	d.Observe(loudFrame(frame))
	for i := 0; i < 10; i++ {
		if ev := d.Observe(quietFrame(frame)); ev != VADNone {
			t.Fatalf("quiet frame %d produced event %v", i, ev)
		}
	}
	if d.State() != VADSilence {
		t.Fatalf("state = %v, want silence after isolated spike", d.State())
	}
}

func TestDetectorDebouncesMidSentencePause(t *testing.T) {
	d := testDetector()
	frame := 100 * time.Millisecond

	for i := 0; i < 5; i++ {
		d.Observe(loudFrame(frame))
	}
	if d.State() != VADSpeech {
		t.Fatalf("state = %v, want speech", d.State())
	}

	// 1.3s of silence: just under the 1.4s debounce.
	for i := 0; i < 13; i++ {
		if ev := d.Observe(quietFrame(frame)); ev != VADNone {
			t.Fatalf("event during pause = %v, want VADNone", ev)
		}
	}

	// Speech resumes; the silence run must reset.
	if ev := d.Observe(loudFrame(frame)); ev != VADNone {
		t.Fatalf("event on resume = %v, want VADNone", ev)
	}
	for i := 0; i < 13; i++ {
		if ev := d.Observe(quietFrame(frame)); ev != VADNone {
			t.Fatalf("event during second pause = %v, want VADNone", ev)
		}
	}
	if ev := d.Observe(quietFrame(frame)); ev != VADSpeechEnd {
		t.Fatalf("event at debounce threshold = %v, want VADSpeechEnd", ev)
	}
	if d.State() != VADSilence {
		t.Fatalf("state = %v, want silence after utterance end", d.State())
	}
}

func TestDetectorResetClearsHistory(t *testing.T) {
	d := testDetector()
	frame := 100 * time.Millisecond

	d.Observe(loudFrame(frame))
	d.Observe(loudFrame(frame))
	d.Reset()

	// Old votes must not count toward a new speech start.
	if ev := d.Observe(loudFrame(frame)); ev != VADNone {
		t.Fatalf("event after reset = %v, want VADNone", ev)
	}
	if ev := d.Observe(loudFrame(frame)); ev != VADNone {
		t.Fatalf("event after reset = %v, want VADNone", ev)
	}
	if ev := d.Observe(loudFrame(frame)); ev != VADSpeechStart {
		t.Fatalf("event = %v, want VADSpeechStart after fresh majority", ev)
	}
}
