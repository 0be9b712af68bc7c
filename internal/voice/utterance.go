package voice

import "time"

// minCommitDuration is the floor below which the realtime service rejects a
// commit outright. Commits under it are suppressed locally instead.
const minCommitDuration = 100 * time.Millisecond

// UtteranceBuffer tracks the in-flight utterance: how much audio has been
// forwarded to the service and how much of it was actual speech. Single-owner
// state: only the session client's run loop touches it.
type UtteranceBuffer struct {
	pending   time.Duration
	speech    time.Duration
	minCommit time.Duration
}

func NewUtteranceBuffer(minCommit time.Duration) *UtteranceBuffer {
	if minCommit <= 0 {
		minCommit = minCommitDuration
	}
	return &UtteranceBuffer{minCommit: minCommit}
}

// AddSpeechFrame accounts for one forwarded frame of speech.
func (u *UtteranceBuffer) AddSpeechFrame(d time.Duration) {
	u.pending += d
	u.speech += d
}

// AddSilenceFrame accounts for one forwarded frame of trailing silence.
// Silence still ships to the service so the utterance does not end with a
// hard cut, but it never counts toward commit eligibility.
func (u *UtteranceBuffer) AddSilenceFrame(d time.Duration) {
	u.pending += d
}

// CommitEligible reports whether enough speech has accumulated for a valid
// commit. Callers that see false skip the commit silently and keep buffering.
func (u *UtteranceBuffer) CommitEligible() bool {
	return u.speech >= u.minCommit
}

func (u *UtteranceBuffer) PendingDuration() time.Duration { return u.pending }
func (u *UtteranceBuffer) SpeechDuration() time.Duration  { return u.speech }

// Reset clears all accumulated state. Called after every commit, after
// recoverable buffer errors, and on disconnect.
func (u *UtteranceBuffer) Reset() {
	u.pending = 0
	u.speech = 0
}
