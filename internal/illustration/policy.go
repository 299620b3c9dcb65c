package illustration

import (
	"time"

	"tinytales/internal/config"
)

// RetryPolicy bounds rate-limit retries for a single sentence.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MinBackoff     time.Duration
}

// DefaultPolicy returns the stock schedule: 3 retries starting at 5s,
// doubling to a 60s cap, never shorter than 1s.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     60 * time.Second,
		MinBackoff:     time.Second,
	}
}

// PolicyFromConfig builds a policy from the illustration config section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	policy := DefaultPolicy()
	if cfg == nil {
		return policy
	}
	initial, maxBackoff, minBackoff := cfg.RetryDurations()
	if cfg.Illustration.MaxRetries >= 0 {
		policy.MaxRetries = cfg.Illustration.MaxRetries
	}
	if initial > 0 {
		policy.InitialBackoff = initial
	}
	if maxBackoff > 0 {
		policy.MaxBackoff = maxBackoff
	}
	if minBackoff > 0 {
		policy.MinBackoff = minBackoff
	}
	return policy
}

// RetryState tracks one sentence's retry progress. It is discarded once the
// sentence settles.
type RetryState struct {
	Attempt int
	Backoff time.Duration
}

// NewState starts a retry sequence at the policy's initial backoff.
func (p RetryPolicy) NewState() RetryState {
	return RetryState{Backoff: p.InitialBackoff}
}

// Exhausted reports whether another retry would exceed the bound.
func (p RetryPolicy) Exhausted(state RetryState) bool {
	return state.Attempt >= p.MaxRetries
}

// Next advances state by one attempt and returns the delay before it. A
// provider hint is used as-is and leaves the running backoff untouched;
// otherwise the running backoff is used and then doubled up to the cap.
func (p RetryPolicy) Next(state *RetryState, hint time.Duration, hasHint bool) time.Duration {
	state.Attempt++
	var delay time.Duration
	if hasHint {
		delay = hint
	} else {
		delay = state.Backoff
		state.Backoff *= 2
		if state.Backoff > p.MaxBackoff {
			state.Backoff = p.MaxBackoff
		}
	}
	if delay < p.MinBackoff {
		delay = p.MinBackoff
	}
	return delay
}
