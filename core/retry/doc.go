// Package retry wraps fallible operations with classified exponential backoff and a circuit breaker.
//
// Errors are sorted into three classes. Transient errors (timeouts, resets, 5xx) are retried up to
// Policy.MaxRetries with the regular backoff; resource exhaustion (429, quota) is retried up to
// Policy.QuotaMaxRetries with the longer quota backoff; anything else fails immediately.
//
// Every attempt passes through a sony/gobreaker breaker. Once open it rejects calls with
// ErrCircuitOpen until the reset timeout elapses, then lets a single trial through.
package retry
