package audio

import (
	"testing"
	"time"
)

func TestRMSDecibelsSilence(t *testing.T) {
	if db := RMSDecibels(make([]int16, 2400)); db != -96 {
		t.Fatalf("RMSDecibels(zeros) = %v, want -96", db)
	}
	if db := RMSDecibels(nil); db != -96 {
		t.Fatalf("RMSDecibels(nil) = %v, want -96", db)
	}
}

func TestRMSDecibelsFullScale(t *testing.T) {
	samples := make([]int16, 2400)
	for i := range samples {
		samples[i] = 32767
	}
	db := RMSDecibels(samples)
	if db > 0.01 || db < -0.01 {
		t.Fatalf("RMSDecibels(full scale) = %v, want ~0 dBFS", db)
	}
}

func TestRMSDecibelsOrdering(t *testing.T) {
	loud := make([]int16, 2400)
	quiet := make([]int16, 2400)
	for i := range loud {
		loud[i] = 16000
		quiet[i] = 200
	}
	if RMSDecibels(loud) <= RMSDecibels(quiet) {
		t.Fatalf("loud frame energy %v <= quiet frame energy %v", RMSDecibels(loud), RMSDecibels(quiet))
	}
}

func TestFramePCMRoundTrip(t *testing.T) {
	f := Frame{
		Samples:    []int16{0, 1, -1, 32767, -32768},
		CapturedAt: time.Now(),
		Duration:   100 * time.Millisecond,
	}
	got := SamplesFromPCM(f.PCMBytes())
	if len(got) != len(f.Samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(f.Samples))
	}
	for i := range got {
		if got[i] != f.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], f.Samples[i])
		}
	}
}
