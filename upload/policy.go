package upload

import "time"

// Action tells the uploader what to do after a failed request.
type Action int

const (
	ActionFail Action = iota
	ActionRetry
)

// Policy decides whether a failed PUT is worth another attempt.
// attempt counts from 1; status is the HTTP status code, or 0 when the
// request never got a response.
type Policy interface {
	OnError(attempt, status int, err error) Action
	Delay(attempt int) time.Duration
}

// StrictPolicy fails on the first error.
type StrictPolicy struct{}

func NewStrictPolicy() *StrictPolicy { return &StrictPolicy{} }

func (*StrictPolicy) OnError(attempt, status int, err error) Action { return ActionFail }

func (*StrictPolicy) Delay(attempt int) time.Duration { return 0 }

// BackoffPolicy retries transport errors and 5xx responses with
// exponential delay. Client errors are never retried: a 4xx on one
// attempt will be a 4xx on every attempt.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewBackoffPolicy() *BackoffPolicy {
	return &BackoffPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

func (p *BackoffPolicy) OnError(attempt, status int, err error) Action {
	if attempt >= p.MaxAttempts {
		return ActionFail
	}
	if status >= 400 && status < 500 {
		return ActionFail
	}
	return ActionRetry
}

func (p *BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	return d
}
