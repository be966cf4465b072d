// Package forge defines the interface for cross-checking local
// validation results against a hosting provider's CI status. Concrete
// API clients plug in behind StatusFetcher; the default build ships
// without one.
package forge

import (
	"context"
	"errors"
)

// State is the aggregate CI state for a commit.
type State string

const (
	StateUnknown State = "unknown"
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// CheckStatus is one CI check's outcome.
type CheckStatus struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	URL   string `json:"url,omitempty"`
}

// CombinedStatus aggregates every check reported for a commit.
type CombinedStatus struct {
	Commit string        `json:"commit"`
	State  State         `json:"state"`
	Checks []CheckStatus `json:"checks,omitempty"`
}

// ErrNotConfigured is returned when no fetcher has been set up.
var ErrNotConfigured = errors.New("no CI status fetcher configured")

// StatusFetcher retrieves CI status for a commit from a hosting
// provider.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, commit string) (*CombinedStatus, error)
}

// Unconfigured is the default fetcher. Every call reports
// ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) FetchStatus(ctx context.Context, commit string) (*CombinedStatus, error) {
	return nil, ErrNotConfigured
}

// Combine folds individual check states into an aggregate: any failure
// wins, then any pending, then success if every check succeeded.
func Combine(checks []CheckStatus) State {
	if len(checks) == 0 {
		return StateUnknown
	}
	state := StateSuccess
	for _, c := range checks {
		switch c.State {
		case StateFailure:
			return StateFailure
		case StatePending:
			state = StatePending
		case StateSuccess:
		default:
			if state == StateSuccess {
				state = StateUnknown
			}
		}
	}
	return state
}
