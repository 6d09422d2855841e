package schedule

import "time"

// ClampClientNow reconciles a client-reported current time with the server
// clock. The client clock wins inside the allowed skew so local wall-clock
// disputes never surface, but a clock deviating further than maxSkew is
// replaced by server time to keep the lead-time windows honest.
func ClampClientNow(clientNow *time.Time, serverNow time.Time, maxSkew time.Duration) time.Time {
	if clientNow == nil {
		return serverNow
	}
	diff := clientNow.Sub(serverNow)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxSkew {
		return serverNow
	}
	return *clientNow
}
