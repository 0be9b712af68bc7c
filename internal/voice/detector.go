package voice

import (
	"time"

	"github.com/mirelabs/mira/internal/audio"
)

// VADState is the detector's current classification.
type VADState int

const (
	VADSilence VADState = iota
	VADSpeech
)

func (s VADState) String() string {
	if s == VADSpeech {
		return "speech"
	}
	return "silence"
}

// VADEvent is a state transition emitted by Observe.
type VADEvent int

const (
	VADNone VADEvent = iota
	VADSpeechStart
	VADSpeechEnd
)

type DetectorConfig struct {
	// NoiseGateDB is the energy floor in dBFS; frames at or above it vote
	// for speech.
	NoiseGateDB float64
	// WindowFrames/WindowVotes define the start hysteresis: speech begins
	// only once WindowVotes of the last WindowFrames are above the gate.
	WindowFrames int
	WindowVotes  int
	// SilenceDebounce is the continuous below-gate duration required before
	// an utterance is declared finished. Generous on purpose: people pause
	// mid-sentence.
	SilenceDebounce time.Duration
}

// Detector classifies capture frames into speech and silence with hysteresis
// on both edges. It is owned by the session client and only touched from its
// run loop.
type Detector struct {
	cfg DetectorConfig

	state      VADState
	window     []bool
	windowIdx  int
	windowLen  int
	silenceRun time.Duration
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.WindowFrames <= 0 {
		cfg.WindowFrames = 5
	}
	if cfg.WindowVotes <= 0 || cfg.WindowVotes > cfg.WindowFrames {
		cfg.WindowVotes = (cfg.WindowFrames + 1) / 2
	}
	if cfg.SilenceDebounce <= 0 {
		cfg.SilenceDebounce = 1400 * time.Millisecond
	}
	if cfg.NoiseGateDB == 0 {
		cfg.NoiseGateDB = -40
	}
	return &Detector{
		cfg:    cfg,
		window: make([]bool, cfg.WindowFrames),
	}
}

// Observe consumes one frame and reports any transition it caused.
func (d *Detector) Observe(frame audio.Frame) VADEvent {
	above := frame.EnergyDB() >= d.cfg.NoiseGateDB

	d.window[d.windowIdx] = above
	d.windowIdx = (d.windowIdx + 1) % len(d.window)
	if d.windowLen < len(d.window) {
		d.windowLen++
	}

	switch d.state {
	case VADSilence:
		if d.votes() >= d.cfg.WindowVotes {
			d.state = VADSpeech
			d.silenceRun = 0
			return VADSpeechStart
		}
	case VADSpeech:
		if above {
			d.silenceRun = 0
			return VADNone
		}
		d.silenceRun += frame.Duration
		if d.silenceRun >= d.cfg.SilenceDebounce {
			d.resetWindow()
			d.state = VADSilence
			d.silenceRun = 0
			return VADSpeechEnd
		}
	}
	return VADNone
}

func (d *Detector) State() VADState { return d.state }

// Reset returns the detector to silence with no history. Used after session
// resets so stale votes cannot trigger a phantom speech start.
func (d *Detector) Reset() {
	d.resetWindow()
	d.state = VADSilence
	d.silenceRun = 0
}

func (d *Detector) votes() int {
	n := 0
	for i := 0; i < d.windowLen; i++ {
		if d.window[i] {
			n++
		}
	}
	return n
}

func (d *Detector) resetWindow() {
	for i := range d.window {
		d.window[i] = false
	}
	d.windowIdx = 0
	d.windowLen = 0
}
