package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubTransport struct {
	mu     sync.Mutex
	sent   []any
	events chan any
	closed bool
}

func newStubTransport() *stubTransport {
	return &stubTransport{events: make(chan any, 32)}
}

func (t *stubTransport) Send(msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *stubTransport) Events() <-chan any { return t.events }

func (t *stubTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	return nil
}

func (t *stubTransport) sentMessages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.sent))
	copy(out, t.sent)
	return out
}

type stubDialer struct {
	mu       sync.Mutex
	attempts int
	failures int
	// failFrom makes every attempt numbered >= failFrom fail. Zero disables.
	failFrom int
	err      error
	made     []*stubTransport
}

func (d *stubDialer) Dial(ctx context.Context, token string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failures || (d.failFrom > 0 && d.attempts >= d.failFrom) {
		if d.err != nil {
			return nil, d.err
		}
		return nil, errors.New("dial refused")
	}
	tr := newStubTransport()
	d.made = append(d.made, tr)
	return tr, nil
}

type stubCreds struct {
	mu     sync.Mutex
	issued int
	err    error
}

func (c *stubCreds) SessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.issued++
	return "tok", nil
}

func testSupervisor(dialer Dialer, creds CredentialProvider) *Supervisor {
	return NewSupervisor(SupervisorConfig{
		MaxAttempts:      3,
		HandshakeTimeout: time.Second,
		BackoffBase:      time.Millisecond,
		BackoffCap:       4 * time.Millisecond,
	}, dialer, creds, nil, zerolog.Nop())
}

func TestSupervisorConnectsFirstAttempt(t *testing.T) {
	dialer := &stubDialer{}
	creds := &stubCreds{}
	s := testSupervisor(dialer, creds)

	tr, err := s.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if tr == nil {
		t.Fatal("Connect() returned nil transport")
	}
	if dialer.attempts != 1 {
		t.Fatalf("dial attempts = %d, want 1", dialer.attempts)
	}
}

func TestSupervisorRetriesThenSucceeds(t *testing.T) {
	dialer := &stubDialer{failures: 2}
	creds := &stubCreds{}
	s := testSupervisor(dialer, creds)

	tr, err := s.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if tr == nil {
		t.Fatal("Connect() returned nil transport")
	}
	if dialer.attempts != 3 {
		t.Fatalf("dial attempts = %d, want 3", dialer.attempts)
	}
	if creds.issued != 3 {
		t.Fatalf("tokens issued = %d, want one per attempt", creds.issued)
	}
}

func TestSupervisorExhaustionYieldsSingleFatalError(t *testing.T) {
	dialer := &stubDialer{failures: 10}
	creds := &stubCreds{}
	s := testSupervisor(dialer, creds)

	_, err := s.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if dialer.attempts != 3 {
		t.Fatalf("dial attempts = %d, want capped at 3", dialer.attempts)
	}
}

func TestSupervisorHonorsContextCancellation(t *testing.T) {
	dialer := &stubDialer{failures: 10}
	creds := &stubCreds{}
	s := NewSupervisor(SupervisorConfig{
		MaxAttempts:      3,
		HandshakeTimeout: time.Second,
		BackoffBase:      time.Hour,
		BackoffCap:       time.Hour,
	}, dialer, creds, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
}
