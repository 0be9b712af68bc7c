package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/observability"
	"github.com/mirelabs/mira/internal/reliability"
)

// ErrConnectionFailed is the single fatal error surfaced after every
// connection attempt has been exhausted.
var ErrConnectionFailed = errors.New("realtime connection failed after retries")

type SupervisorConfig struct {
	MaxAttempts      int
	HandshakeTimeout time.Duration
	BackoffBase      time.Duration
	BackoffCap       time.Duration
}

// Supervisor owns the connect/reconnect policy for the realtime transport.
// Each attempt fetches a fresh session token; tokens are single-use and the
// supervisor never holds one past the dial.
type Supervisor struct {
	cfg     SupervisorConfig
	dialer  Dialer
	creds   CredentialProvider
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewSupervisor(cfg SupervisorConfig, dialer Dialer, creds CredentialProvider, metrics *observability.Metrics, log zerolog.Logger) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 4 * time.Second
	}
	return &Supervisor{cfg: cfg, dialer: dialer, creds: creds, metrics: metrics, log: log}
}

// Connect dials until a transport is established or MaxAttempts is reached.
// Intermediate failures are logged but never returned; callers see either a
// live transport, the caller's context error, or ErrConnectionFailed once.
func (s *Supervisor) Connect(ctx context.Context) (Transport, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, s.cfg.BackoffBase, s.cfg.BackoffCap)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if s.metrics != nil {
			s.metrics.ReconnectAttempts.Inc()
		}

		token, err := s.creds.SessionToken(ctx)
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("session token fetch failed")
			continue
		}

		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		transport, err := s.dialer.Dial(dialCtx, token)
		cancel()
		if err == nil {
			s.log.Info().Int("attempt", attempt+1).Msg("realtime transport connected")
			return transport, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("realtime dial failed")
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
}
