// Package outbox contains the pure rules of the mutation outbox: the
// per-entry state machine, operation-to-verb mapping and retry spacing.
package outbox

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is the kind of local mutation an entry records.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// HTTPMethod maps an operation to the verb used to replay it remotely.
func (op Operation) HTTPMethod() (string, error) {
	switch op {
	case OpInsert:
		return http.MethodPost, nil
	case OpUpdate:
		return http.MethodPut, nil
	case OpDelete:
		return http.MethodDelete, nil
	}
	return "", fmt.Errorf("unknown outbox operation %q", op)
}

// State is the lifecycle state of an outbox entry.
type State string

const (
	StatePending State = "PENDING"
	StateSynced  State = "SYNCED"
)

// Outcome is the result of one remote replay attempt.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

// Transition returns the state after an attempt with the given outcome.
// SYNCED is terminal; a failed attempt leaves an entry PENDING.
func Transition(current State, outcome Outcome) State {
	if current == StateSynced {
		return StateSynced
	}
	if outcome == OutcomeSucceeded {
		return StateSynced
	}
	return StatePending
}

// BackoffPolicy spaces out retries of a failing entry. Retries are never
// exhausted; the delay grows exponentially up to Max.
type BackoffPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffPolicy starts at 5s, doubles, and caps at 30 minutes.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Initial: 5 * time.Second, Max: 30 * time.Minute, Multiplier: 2}
}

// Delay returns how long to wait before the next attempt after attempts
// consecutive failures. attempts <= 0 means no wait.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
		if d >= p.Max {
			return p.Max
		}
	}
	return d
}

// NextAttempt returns the earliest time an entry that has failed attempts
// times, most recently at lastAttempt, may be retried.
func (p BackoffPolicy) NextAttempt(lastAttempt time.Time, attempts int) time.Time {
	return lastAttempt.Add(p.Delay(attempts))
}

// Eligible reports whether an entry scheduled for nextAttempt may run at now.
// A zero nextAttempt means the entry has never failed.
func Eligible(nextAttempt, now time.Time) bool {
	return nextAttempt.IsZero() || !now.Before(nextAttempt)
}
