package session

import (
	"errors"
	"testing"
	"time"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(time.Minute)

	created := m.Create("caller-1", "voice-a")
	if created.ID == "" {
		t.Fatal("Create() returned empty session id")
	}
	if created.Status != StatusActive {
		t.Fatalf("status = %v, want active", created.Status)
	}

	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.CallerID != "caller-1" || got.VoiceID != "voice-a" {
		t.Fatalf("Get() = %+v, want caller-1/voice-a", got)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerActiveByCaller(t *testing.T) {
	m := NewManager(time.Minute)

	if _, ok := m.Active("caller-1"); ok {
		t.Fatal("Active() = true before any session exists")
	}

	created := m.Create("caller-1", "voice-a")
	active, ok := m.Active("caller-1")
	if !ok || active.ID != created.ID {
		t.Fatalf("Active() = %+v, %v; want the created session", active, ok)
	}

	if _, err := m.End(created.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, ok := m.Active("caller-1"); ok {
		t.Fatal("Active() = true after End")
	}
}

func TestManagerCounters(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("caller-1", "voice-a")

	if err := m.RecordTurn(s.ID); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}
	if err := m.RecordReconnect(s.ID); err != nil {
		t.Fatalf("RecordReconnect() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.TurnCount != 1 || got.ReconnectCount != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", got.TurnCount, got.ReconnectCount)
	}
}

func TestManagerExpiresInactiveSessions(t *testing.T) {
	m := NewManager(10 * time.Millisecond)
	expired := make(chan *Session, 1)
	m.SetExpireHook(func(s *Session) { expired <- s })

	created := m.Create("caller-1", "voice-a")
	time.Sleep(20 * time.Millisecond)
	m.expireInactive()

	select {
	case s := <-expired:
		if s.ID != created.ID {
			t.Fatalf("expired session = %s, want %s", s.ID, created.ID)
		}
	default:
		t.Fatal("expire hook not called")
	}

	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("status = %v, want ended", got.Status)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

func TestManagerTouchDefersExpiry(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	created := m.Create("caller-1", "voice-a")

	time.Sleep(30 * time.Millisecond)
	if err := m.Touch(created.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	m.expireInactive()

	got, _ := m.Get(created.ID)
	if got.Status != StatusActive {
		t.Fatalf("status = %v, want still active after Touch", got.Status)
	}
}
