package retry

import (
	"math"
	"time"
)

// Policy configures backoff and breaker behaviour.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt for transient errors.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `mapstructure:"initial_delay" default:"500ms"`
	// MaxDelay caps the transient backoff.
	MaxDelay time.Duration `mapstructure:"max_delay" default:"30s"`
	// BackoffFactor multiplies the delay on every retry.
	BackoffFactor float64 `mapstructure:"backoff_factor" default:"2"`
	// QuotaMaxRetries is the retry ceiling for resource exhaustion errors.
	QuotaMaxRetries int `mapstructure:"quota_max_retries" default:"5"`
	// QuotaDelay is the initial delay after a resource exhaustion error.
	QuotaDelay time.Duration `mapstructure:"quota_delay" default:"5s"`
	// QuotaMaxDelay caps the quota backoff.
	QuotaMaxDelay time.Duration `mapstructure:"quota_max_delay" default:"2m"`
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int `mapstructure:"failure_threshold" default:"5"`
	// ResetTimeout is how long the breaker stays open before allowing a trial.
	ResetTimeout time.Duration `mapstructure:"reset_timeout" default:"60s"`
}

// DefaultPolicy mirrors the struct tag defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:       3,
		InitialDelay:     500 * time.Millisecond,
		MaxDelay:         30 * time.Second,
		BackoffFactor:    2,
		QuotaMaxRetries:  5,
		QuotaDelay:       5 * time.Second,
		QuotaMaxDelay:    2 * time.Minute,
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// Delay returns min(InitialDelay * BackoffFactor^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	return backoff(p.InitialDelay, p.MaxDelay, p.BackoffFactor, attempt)
}

// QuotaBackoff returns min(QuotaDelay * BackoffFactor^attempt, QuotaMaxDelay).
func (p Policy) QuotaBackoff(attempt int) time.Duration {
	return backoff(p.QuotaDelay, p.QuotaMaxDelay, p.BackoffFactor, attempt)
}

func backoff(initial, max time.Duration, factor float64, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if factor < 1 {
		factor = 1
	}
	d := float64(initial) * math.Pow(factor, float64(attempt))
	if max > 0 && d > float64(max) {
		return max
	}
	return time.Duration(d)
}
