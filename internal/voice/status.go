package voice

import (
	"sync"
	"time"
)

// SessionState is the pipeline's externally visible lifecycle state.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateConnecting       SessionState = "connecting"
	StateConnected        SessionState = "connected"
	StateListening        SessionState = "listening"
	StateAwaitingResponse SessionState = "awaiting_response"
	StateSpeaking         SessionState = "speaking"
	StateReconnecting     SessionState = "reconnecting"
	StateFailed           SessionState = "failed"
)

// stateGaugeValue maps states onto the session state gauge.
func stateGaugeValue(s SessionState) float64 {
	switch s {
	case StateIdle:
		return 0
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateListening:
		return 3
	case StateAwaitingResponse:
		return 4
	case StateSpeaking:
		return 5
	case StateReconnecting:
		return 6
	case StateFailed:
		return 7
	}
	return -1
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	State      SessionState `json:"state"`
	Transcript string       `json:"transcript,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// StatusHub fans status snapshots out to subscribers. Slow subscribers miss
// intermediate updates rather than blocking the pipeline.
type StatusHub struct {
	mu      sync.Mutex
	current Status
	subs    map[chan Status]struct{}
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		current: Status{State: StateIdle, UpdatedAt: time.Now()},
		subs:    make(map[chan Status]struct{}),
	}
}

func (h *StatusHub) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe returns a channel of status updates and a cancel func. The
// channel is buffered; updates are dropped if the subscriber lags.
func (h *StatusHub) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	ch <- h.current
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SetState updates the state, leaving the transcript untouched. Any detail
// from a previous state is cleared; detail belongs to the state that set it.
func (h *StatusHub) SetState(s SessionState) {
	h.update(func(st *Status) {
		st.State = s
		st.Detail = ""
	})
}

// SetStateDetail updates the state with a human-readable elaboration.
func (h *StatusHub) SetStateDetail(s SessionState, detail string) {
	h.update(func(st *Status) {
		st.State = s
		st.Detail = detail
	})
}

func (h *StatusHub) SetTranscript(text string) {
	h.update(func(st *Status) { st.Transcript = text })
}

func (h *StatusHub) SetError(s SessionState, err error) {
	h.update(func(st *Status) {
		st.State = s
		if err != nil {
			st.LastError = err.Error()
		}
	})
}

func (h *StatusHub) update(fn func(*Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.current)
	h.current.UpdatedAt = time.Now()
	for ch := range h.subs {
		select {
		case ch <- h.current:
		default:
		}
	}
}
