package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/audio"
	"github.com/mirelabs/mira/internal/observability"
)

var (
	ErrPipelineActive   = errors.New("voice pipeline already active")
	ErrPipelineInactive = errors.New("voice pipeline not active")
	ErrNotEntitled      = errors.New("caller not entitled to start a session")
)

// FrameSource abstracts the microphone so tests can feed synthetic frames.
type FrameSource interface {
	Start(ctx context.Context) error
	Frames() <-chan audio.Frame
	Stop()
	Err() error
}

// Pipeline wires capture, detection, the realtime session, and synthesized
// playback together behind a start/stop surface. One pipeline drives at most
// one live session.
type Pipeline struct {
	cfg     ClientConfig
	source  FrameSource
	queue   *SynthQueue
	arbiter *audio.Arbiter
	sink    Sink
	gate    EntitlementGate
	status  *StatusHub
	metrics *observability.Metrics
	log     zerolog.Logger

	newClient func() *Client

	mu           sync.Mutex
	cancel       context.CancelFunc
	captureLease *audio.Lease
	done         chan struct{}
	lastErr      error
}

func NewPipeline(
	cfg ClientConfig,
	source FrameSource,
	supervisor *Supervisor,
	queue *SynthQueue,
	arbiter *audio.Arbiter,
	sink Sink,
	gate EntitlementGate,
	status *StatusHub,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		source:  source,
		queue:   queue,
		arbiter: arbiter,
		sink:    sink,
		gate:    gate,
		status:  status,
		metrics: metrics,
		log:     log,
	}
	p.newClient = func() *Client {
		return NewClient(cfg, supervisor, queue, status, metrics, log)
	}
	return p
}

// Start checks entitlement, claims the capture lease, opens the microphone,
// and launches the session. A permission failure is fatal and surfaced
// immediately; nothing retries it.
func (p *Pipeline) Start(ctx context.Context, callerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrPipelineActive
	}

	if p.gate != nil {
		ok, err := p.gate.CanStartSession(ctx, callerID)
		if err != nil {
			return fmt.Errorf("entitlement check: %w", err)
		}
		if !ok {
			return ErrNotEntitled
		}
	}

	lease, err := p.arbiter.Acquire(audio.CategoryCapture, audio.PriorityCapture)
	if err != nil {
		return fmt.Errorf("capture lease: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := p.source.Start(runCtx); err != nil {
		p.arbiter.Release(lease)
		cancel()
		p.status.SetError(StateFailed, err)
		return err
	}

	p.cancel = cancel
	p.captureLease = lease
	p.done = make(chan struct{})
	p.lastErr = nil

	client := p.newClient()
	go p.run(runCtx, client)
	p.log.Info().Str("caller", callerID).Msg("voice pipeline started")
	return nil
}

func (p *Pipeline) run(ctx context.Context, client *Client) {
	defer close(p.done)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		p.playRemoteClips(ctx, client.RemoteClips())
	}()

	err := client.Run(ctx, p.source.Frames())
	if err == nil && ctx.Err() == nil {
		// The frame channel closed without Stop being called: the capture
		// device died underneath us. That is a failure, not a clean exit.
		if srcErr := p.source.Err(); srcErr != nil {
			err = srcErr
			p.status.SetError(StateFailed, srcErr)
			if p.metrics != nil {
				p.metrics.SessionState.Set(stateGaugeValue(StateFailed))
			}
			p.log.Error().Err(srcErr).Msg("audio capture interrupted")
		}
	}

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	wg.Wait()
}

// playRemoteClips plays audio the service pushes directly. It competes for
// the device at fallback priority so locally synthesized speech always wins.
func (p *Pipeline) playRemoteClips(ctx context.Context, clips <-chan Clip) {
	for clip := range clips {
		lease, err := p.arbiter.Acquire(audio.CategoryFallbackPlayback, audio.PriorityFallbackPlayback)
		if err != nil {
			// Device busy with higher priority output; skip the clip.
			continue
		}

		playCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-lease.Revoked():
				cancel()
			case <-playCtx.Done():
			}
		}()
		if err := p.sink.Play(playCtx, clip.PCM, clip.SampleRate); err != nil {
			p.log.Debug().Err(err).Msg("remote clip playback interrupted")
		}
		cancel()
		p.arbiter.Release(lease)

		if ctx.Err() != nil {
			return
		}
	}
}

// Stop tears the pipeline down completely: session, microphone, queued
// speech, and every device lease are released before Stop returns.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.captureLease = nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrPipelineInactive
	}

	cancel()
	p.source.Stop()
	p.queue.Clear()
	<-done
	p.arbiter.ReleaseAll()

	p.status.SetState(StateIdle)
	if p.metrics != nil {
		p.metrics.SessionState.Set(stateGaugeValue(StateIdle))
	}
	p.log.Info().Msg("voice pipeline stopped")
	return nil
}

// Say queues text for speech directly, outside the conversation loop.
func (p *Pipeline) Say(text string) (int64, error) {
	p.mu.Lock()
	active := p.cancel != nil
	p.mu.Unlock()
	if !active {
		return 0, ErrPipelineInactive
	}
	return p.queue.Enqueue(text), nil
}

// Active reports whether a session is running.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Err reports the terminal error of the last run, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Pipeline) Status() Status { return p.status.Snapshot() }

func (p *Pipeline) Subscribe() (<-chan Status, func()) { return p.status.Subscribe() }
