package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Class is the retry classification of an error.
type Class int

const (
	// NonRetryable errors fail immediately.
	NonRetryable Class = iota
	// Transient errors are retried with the regular backoff.
	Transient
	// ResourceExhausted errors are retried with the quota backoff and ceiling.
	ResourceExhausted
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case ResourceExhausted:
		return "resource_exhausted"
	default:
		return "non_retryable"
	}
}

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable regardless of its message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

var (
	quotaSignatures     = []string{"quota", "resource_exhausted", "rate limit", "too many requests"}
	transientSignatures = []string{
		"timeout", "timed out", "deadline exceeded", "connection reset", "connection refused",
		"broken pipe", "unavailable", "deadlock", "try again",
	}
)

// Classify sorts err into a retry class.
func Classify(err error) Class {
	if err == nil {
		return NonRetryable
	}
	var perm *permanentError
	if errors.As(err, &perm) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return NonRetryable
	}

	var se StatusError
	if errors.As(err, &se) {
		switch se.HTTPStatus() {
		case http.StatusTooManyRequests:
			return ResourceExhausted
		case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return Transient
		default:
			return NonRetryable
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Transient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, s := range quotaSignatures {
		if strings.Contains(msg, s) {
			return ResourceExhausted
		}
	}
	for _, s := range transientSignatures {
		if strings.Contains(msg, s) {
			return Transient
		}
	}
	return NonRetryable
}

// Retryable reports whether err belongs to a retryable class.
func Retryable(err error) bool {
	return Classify(err) != NonRetryable
}
