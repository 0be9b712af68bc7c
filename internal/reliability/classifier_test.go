package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Fatalf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}

func TestIsRecoverableRealtimeError(t *testing.T) {
	if !IsRecoverableRealtimeError("input_audio_buffer_commit_empty") {
		t.Fatalf("input_audio_buffer_commit_empty should be recoverable")
	}
	if !IsRecoverableRealtimeError("buffer_too_small") {
		t.Fatalf("buffer_too_small should be recoverable")
	}
	if IsRecoverableRealtimeError("unauthorized") {
		t.Fatalf("unauthorized should not be recoverable")
	}
}

func TestExponentialBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	limit := 4 * time.Second
	if d := ExponentialBackoff(0, base, limit); d != base {
		t.Fatalf("ExponentialBackoff(0) = %s, want %s", d, base)
	}
	if d := ExponentialBackoff(1, base, limit); d != 1*time.Second {
		t.Fatalf("ExponentialBackoff(1) = %s, want 1s", d)
	}
	if d := ExponentialBackoff(10, base, limit); d != limit {
		t.Fatalf("ExponentialBackoff(10) = %s, want cap %s", d, limit)
	}
}
