package ratelimit

import (
	"errors"
	"time"
)

// DeniedError is raised by action handlers when the limiter refuses an
// action. It carries the limiter's reason verbatim so the execution log
// stays actionable, plus the wait until the action could pass again.
type DeniedError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return "action denied by rate limiter: " + e.Reason
}

// IsDenied reports whether err is a rate-limit denial.
func IsDenied(err error) bool {
	var denied *DeniedError

	return errors.As(err, &denied)
}
