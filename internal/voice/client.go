package voice

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/audio"
	"github.com/mirelabs/mira/internal/observability"
	"github.com/mirelabs/mira/internal/policy"
	"github.com/mirelabs/mira/internal/protocol"
	"github.com/mirelabs/mira/internal/reliability"
)

type ClientConfig struct {
	SampleRate        int
	MinCommitDuration time.Duration
	Detector          DetectorConfig
}

// Client runs one realtime conversation session. All session state, the
// detector, the utterance buffer, and the state machine, is owned by the
// single goroutine inside Run; nothing else touches it.
type Client struct {
	cfg        ClientConfig
	supervisor *Supervisor
	queue      *SynthQueue
	status     *StatusHub
	metrics    *observability.Metrics
	log        zerolog.Logger

	detector  *Detector
	utterance *UtteranceBuffer

	// played carries sequence numbers of finished clips from the queue
	// worker back into the run loop.
	played chan int64

	// remoteClips carries decoded response.audio.delta payloads out to the
	// fallback playback path.
	remoteClips chan Clip
}

func NewClient(cfg ClientConfig, supervisor *Supervisor, queue *SynthQueue, status *StatusHub, metrics *observability.Metrics, log zerolog.Logger) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Detector.NoiseGateDB == 0 {
		cfg.Detector.NoiseGateDB = -40
	}
	c := &Client{
		cfg:         cfg,
		supervisor:  supervisor,
		queue:       queue,
		status:      status,
		metrics:     metrics,
		log:         log,
		detector:    NewDetector(cfg.Detector),
		utterance:   NewUtteranceBuffer(cfg.MinCommitDuration),
		played:      make(chan int64, 16),
		remoteClips: make(chan Clip, 8),
	}
	queue.SetOnPlayed(func(seq int64, viaFallback bool) {
		select {
		case c.played <- seq:
		default:
		}
	})
	return c
}

// RemoteClips exposes audio the service streams directly, bypassing local
// synthesis. The pipeline plays these on the fallback playback path.
func (c *Client) RemoteClips() <-chan Clip { return c.remoteClips }

// Run connects and drives the session until the context ends or the
// connection is lost beyond recovery. It returns nil on clean shutdown and
// ErrConnectionFailed when every reconnect attempt is exhausted.
func (c *Client) Run(ctx context.Context, frames <-chan audio.Frame) error {
	defer close(c.remoteClips)

	c.setState(StateConnecting)
	transport, err := c.supervisor.Connect(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	if err := c.startSession(transport); err != nil {
		transport.Close()
		c.fail(err)
		return err
	}
	c.setState(StateConnected)

	state := StateListening
	c.setState(state)

	var commitAt time.Time

	for {
		select {
		case <-ctx.Done():
			transport.Close()
			c.setState(StateIdle)
			return nil

		case frame, ok := <-frames:
			if !ok {
				transport.Close()
				c.setState(StateIdle)
				return nil
			}
			if state != StateListening {
				// Half duplex: the mic stays open but frames are
				// discarded while a response is in flight.
				continue
			}
			state = c.handleFrame(transport, frame, state, &commitAt)

		case event, ok := <-transport.Events():
			if !ok {
				next, err := c.reconnect(ctx)
				if err != nil {
					return err
				}
				transport = next
				state = StateListening
				c.setState(state)
				continue
			}
			state = c.handleEvent(event, state, &commitAt)

		case <-c.played:
			if state == StateSpeaking && c.queue.Depth() == 0 {
				state = StateListening
				c.setState(state)
			}
		}
	}
}

// startSession announces the audio format and disables server-side turn
// detection. Endpointing stays on this side of the wire.
func (c *Client) startSession(transport Transport) error {
	return transport.Send(protocol.NewSessionUpdate(c.cfg.SampleRate))
}

func (c *Client) handleFrame(transport Transport, frame audio.Frame, state SessionState, commitAt *time.Time) SessionState {
	event := c.detector.Observe(frame)
	speaking := c.detector.State() == VADSpeech || event == VADSpeechEnd

	if speaking {
		if err := transport.Send(protocol.AudioAppend{
			Type:        protocol.TypeAudioAppend,
			AudioBase64: base64.StdEncoding.EncodeToString(frame.PCMBytes()),
		}); err != nil {
			// The events channel will close shortly; reconnection is
			// handled there.
			c.log.Debug().Err(err).Msg("audio append failed")
			return state
		}
		if frame.EnergyDB() >= c.cfg.Detector.NoiseGateDB {
			c.utterance.AddSpeechFrame(frame.Duration)
		} else {
			c.utterance.AddSilenceFrame(frame.Duration)
		}
	}

	switch event {
	case VADSpeechStart:
		c.incEvent("speech_start")
		c.log.Debug().Msg("speech started")
	case VADSpeechEnd:
		c.incEvent("speech_end")
		if !c.utterance.CommitEligible() {
			// Too little audio for a valid commit. Drop it quietly and
			// keep listening; surfacing this would make every throat
			// clear an error.
			c.incEvent("commit_suppressed")
			c.utterance.Reset()
			return state
		}
		if err := transport.Send(protocol.AudioCommit{Type: protocol.TypeAudioCommit}); err != nil {
			c.log.Debug().Err(err).Msg("audio commit failed")
			return state
		}
		if err := transport.Send(protocol.ResponseCreate{Type: protocol.TypeResponseCreate}); err != nil {
			c.log.Debug().Err(err).Msg("response create failed")
			return state
		}
		c.incEvent("commit")
		c.utterance.Reset()
		*commitAt = time.Now()
		c.setState(StateAwaitingResponse)
		return StateAwaitingResponse
	}
	return state
}

func (c *Client) handleEvent(event any, state SessionState, commitAt *time.Time) SessionState {
	switch msg := event.(type) {
	case protocol.SpeechStarted, protocol.SpeechStopped:
		// Server-side VAD is disabled; these are informational echoes.
		return state

	case protocol.TranscriptionCompleted:
		c.incEvent("transcription")
		c.status.SetTranscript(msg.Transcript)
		safe, _ := policy.RedactTranscript(msg.Transcript)
		c.log.Debug().Str("transcript", safe).Msg("transcription completed")
		return state

	case protocol.ResponseTranscriptDelta:
		return state

	case protocol.ResponseTranscriptDone:
		if c.metrics != nil && !commitAt.IsZero() {
			c.metrics.ObserveCommitLatency(time.Since(*commitAt))
			*commitAt = time.Time{}
		}
		c.incEvent("response")
		if msg.Transcript != "" {
			c.queue.Enqueue(msg.Transcript)
			c.setState(StateSpeaking)
			return StateSpeaking
		}
		c.setState(StateListening)
		return StateListening

	case protocol.ResponseAudioDelta:
		pcm, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
		if err != nil || len(pcm) == 0 {
			c.log.Warn().Err(err).Msg("discarding undecodable audio delta")
			return state
		}
		select {
		case c.remoteClips <- Clip{PCM: pcm, SampleRate: c.cfg.SampleRate}:
		default:
			c.incEvent("remote_audio_dropped")
		}
		return state

	case protocol.ServerError:
		return c.handleServerError(msg, state)
	}
	return state
}

func (c *Client) handleServerError(msg protocol.ServerError, state SessionState) SessionState {
	if reliability.IsRecoverableRealtimeError(msg.Error.Code) {
		// Typically a commit that raced the threshold. Re-arm listening
		// without telling anyone.
		c.log.Debug().Str("code", msg.Error.Code).Msg("recoverable session error")
		c.incEvent("recoverable_error")
		c.utterance.Reset()
		c.detector.Reset()
		if state != StateListening {
			c.setState(StateListening)
		}
		return StateListening
	}

	c.log.Warn().Str("code", msg.Error.Code).Str("message", msg.Error.Message).Msg("realtime server error")
	if c.metrics != nil {
		c.metrics.ProviderErrors.WithLabelValues("realtime", msg.Error.Code).Inc()
	}
	return state
}

// reconnect tears down session state and asks the supervisor for a new
// transport. Queued speech is dropped: it belongs to a conversation turn that
// no longer exists.
func (c *Client) reconnect(ctx context.Context) (Transport, error) {
	c.setStateDetail(StateReconnecting, "connection lost, re-establishing session")
	c.incEvent("reconnect")
	c.queue.Clear()
	c.detector.Reset()
	c.utterance.Reset()

	transport, err := c.supervisor.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.setState(StateIdle)
			return nil, ctx.Err()
		}
		c.fail(err)
		return nil, err
	}
	if err := c.startSession(transport); err != nil {
		transport.Close()
		c.fail(err)
		return nil, err
	}
	c.setState(StateConnected)
	return transport, nil
}

func (c *Client) incEvent(name string) {
	if c.metrics != nil {
		c.metrics.PipelineEvents.WithLabelValues(name).Inc()
	}
}

func (c *Client) setState(s SessionState) {
	c.status.SetState(s)
	if c.metrics != nil {
		c.metrics.SessionState.Set(stateGaugeValue(s))
	}
}

func (c *Client) setStateDetail(s SessionState, detail string) {
	c.status.SetStateDetail(s, detail)
	if c.metrics != nil {
		c.metrics.SessionState.Set(stateGaugeValue(s))
	}
}

func (c *Client) fail(err error) {
	c.status.SetError(StateFailed, err)
	if c.metrics != nil {
		c.metrics.SessionState.Set(stateGaugeValue(StateFailed))
	}
	c.log.Error().Err(err).Msg("session failed")
}
