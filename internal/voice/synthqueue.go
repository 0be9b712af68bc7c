package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/audio"
	"github.com/mirelabs/mira/internal/observability"
)

type SynthQueueConfig struct {
	VoiceID          string
	ModelID          string
	SynthesisTimeout time.Duration
	// LeaseRetryDelay is how long to wait before re-requesting a denied
	// playback lease.
	LeaseRetryDelay time.Duration
}

type queueItem struct {
	seq        int64
	text       string
	enqueuedAt time.Time

	// ready is closed once synthesis has finished, successfully or not.
	ready    chan struct{}
	clip     Clip
	failed   bool
	fallback bool

	cancel context.CancelFunc
}

// SynthQueue synthesizes enqueued text concurrently but plays results
// strictly in enqueue order. A slow item never lets a later item jump ahead;
// the playback worker waits for the head of the line.
type SynthQueue struct {
	cfg      SynthQueueConfig
	primary  Synthesizer
	fallback Synthesizer
	sink     Sink
	arbiter  *audio.Arbiter
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	items   []*queueItem
	nextSeq int64
	playCtx context.CancelFunc

	// wake nudges the playback worker after an enqueue.
	wake chan struct{}

	onPlayed func(seq int64, viaFallback bool)
}

func NewSynthQueue(cfg SynthQueueConfig, primary, fallback Synthesizer, sink Sink, arbiter *audio.Arbiter, metrics *observability.Metrics, log zerolog.Logger) *SynthQueue {
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 8 * time.Second
	}
	if cfg.LeaseRetryDelay <= 0 {
		cfg.LeaseRetryDelay = 50 * time.Millisecond
	}
	return &SynthQueue{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		sink:     sink,
		arbiter:  arbiter,
		metrics:  metrics,
		log:      log,
		wake:     make(chan struct{}, 1),
	}
}

// SetOnPlayed registers the playback completion callback. Must be called
// before Run.
func (q *SynthQueue) SetOnPlayed(fn func(seq int64, viaFallback bool)) {
	q.onPlayed = fn
}

// Enqueue admits text for synthesis and returns its sequence number.
// Synthesis starts immediately in its own goroutine.
func (q *SynthQueue) Enqueue(text string) int64 {
	text = clampText(text)

	itemCtx, cancel := context.WithCancel(context.Background())

	q.mu.Lock()
	q.nextSeq++
	item := &queueItem{
		seq:        q.nextSeq,
		text:       text,
		enqueuedAt: time.Now(),
		ready:      make(chan struct{}),
		cancel:     cancel,
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	go q.synthesize(itemCtx, item)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return item.seq
}

// Clear cancels every queued item, including any in-flight synthesis and the
// clip currently playing. Called on session disconnect.
func (q *SynthQueue) Clear() {
	q.mu.Lock()
	dropped := len(q.items)
	for _, item := range q.items {
		item.cancel()
	}
	q.items = nil
	if q.playCtx != nil {
		q.playCtx()
	}
	q.mu.Unlock()

	if dropped > 0 {
		q.log.Info().Int("dropped", dropped).Msg("synthesis queue cleared")
		if q.metrics != nil {
			q.metrics.PipelineEvents.WithLabelValues("synthesis_queue_cleared").Inc()
		}
	}
}

// Depth reports how many items are queued but not yet played.
func (q *SynthQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *SynthQueue) synthesize(ctx context.Context, item *queueItem) {
	defer close(item.ready)

	synthCtx, cancel := context.WithTimeout(ctx, q.cfg.SynthesisTimeout)
	defer cancel()

	start := time.Now()
	clip, err := q.primary.Synthesize(synthCtx, item.text, q.cfg.VoiceID, q.cfg.ModelID)
	if err == nil {
		// The item may have been cancelled by Clear while the provider was
		// still returning; a cancelled item must never reach the sink.
		if ctx.Err() != nil {
			item.failed = true
			return
		}
		if q.metrics != nil {
			q.metrics.ObserveSynthesisLatency(time.Since(start))
		}
		item.clip = clip
		return
	}
	if ctx.Err() != nil {
		item.failed = true
		return
	}

	q.log.Warn().Err(err).Int64("seq", item.seq).Msg("primary synthesis failed, using fallback")
	if q.metrics != nil {
		q.metrics.ProviderErrors.WithLabelValues("tts_primary", errCode(err)).Inc()
	}

	if q.fallback == nil {
		item.failed = true
		return
	}
	fbCtx, fbCancel := context.WithTimeout(ctx, q.cfg.SynthesisTimeout)
	defer fbCancel()
	clip, err = q.fallback.Synthesize(fbCtx, item.text, q.cfg.VoiceID, q.cfg.ModelID)
	if ctx.Err() != nil {
		item.failed = true
		return
	}
	if err != nil {
		q.log.Error().Err(err).Int64("seq", item.seq).Msg("fallback synthesis failed, dropping item")
		if q.metrics != nil {
			q.metrics.ProviderErrors.WithLabelValues("tts_fallback", errCode(err)).Inc()
		}
		item.failed = true
		return
	}
	item.clip = clip
	item.fallback = true
}

// Run is the playback worker. Exactly one goroutine runs it per queue.
func (q *SynthQueue) Run(ctx context.Context) {
	for {
		item, ok := q.waitHead(ctx)
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-item.ready:
		}

		if !q.dequeue(item) {
			// Clear removed the item while we waited for readiness; it
			// belongs to a conversation turn that no longer exists.
			continue
		}

		if item.failed {
			if q.metrics != nil {
				q.metrics.PipelineEvents.WithLabelValues("synthesis_dropped").Inc()
			}
			continue
		}

		if q.play(ctx, item) && q.onPlayed != nil {
			q.onPlayed(item.seq, item.fallback)
		}
	}
}

// waitHead blocks until an item sits at the head of the queue.
func (q *SynthQueue) waitHead(ctx context.Context) (*queueItem, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.wake:
		}
	}
}

// dequeue pops the item if it is still at the head of the queue. It reports
// false when the item was dropped by Clear in the meantime.
func (q *SynthQueue) dequeue(item *queueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 && q.items[0] == item {
		q.items = q.items[1:]
		return true
	}
	return false
}

// play acquires a playback lease, plays the clip, and releases. Returns true
// only if the clip played to completion.
func (q *SynthQueue) play(ctx context.Context, item *queueItem) bool {
	category := audio.CategoryPrimaryPlayback
	priority := audio.PriorityPrimaryPlayback
	if item.fallback {
		category = audio.CategoryFallbackPlayback
		priority = audio.PriorityFallbackPlayback
	}

	var lease *audio.Lease
	for {
		var err error
		lease, err = q.arbiter.Acquire(category, priority)
		if err == nil {
			break
		}
		// Device busy with equal or higher priority work; wait our turn.
		timer := time.NewTimer(q.cfg.LeaseRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	defer q.arbiter.Release(lease)

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	q.mu.Lock()
	q.playCtx = cancel
	q.mu.Unlock()

	go func() {
		select {
		case <-lease.Revoked():
			cancel()
		case <-playCtx.Done():
		}
	}()

	if err := q.sink.Play(playCtx, item.clip.PCM, item.clip.SampleRate); err != nil {
		q.log.Warn().Err(err).Int64("seq", item.seq).Msg("playback interrupted")
		return false
	}
	return true
}

func errCode(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrSynthUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrSynthRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrSynthTimeout):
		return "timeout"
	case errors.Is(err, ErrSynthMalformed):
		return "malformed"
	default:
		return "other"
	}
}
