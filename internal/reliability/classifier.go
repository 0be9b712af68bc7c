package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRecoverableRealtimeError classifies server error codes that reset local
// state but keep the session alive. Buffer errors fall in this bucket: the
// service rejects a commit carrying too little accumulated audio and the
// client simply re-arms listening.
func IsRecoverableRealtimeError(code string) bool {
	switch code {
	case "input_audio_buffer_commit_empty", "buffer_too_small", "commit_throttled":
		return true
	default:
		return false
	}
}

// IsRetryableRealtimeError classifies upstream realtime error codes worth a
// reconnect rather than a hard failure.
func IsRetryableRealtimeError(code string) bool {
	switch code {
	case "rate_limited", "resource_exhausted", "queue_overflow", "server_error":
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
