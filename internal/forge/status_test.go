package forge

import (
	"context"
	"errors"
	"testing"
)

type staticFetcher struct {
	status *CombinedStatus
	err    error
}

func (f staticFetcher) FetchStatus(ctx context.Context, commit string) (*CombinedStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.status
	s.Commit = commit
	return &s, nil
}

func TestUnconfigured(t *testing.T) {
	_, err := Unconfigured{}.FetchStatus(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestStatusFetcherContract(t *testing.T) {
	var f StatusFetcher = staticFetcher{status: &CombinedStatus{State: StateSuccess}}
	got, err := f.FetchStatus(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if got.Commit != "deadbeef" || got.State != StateSuccess {
		t.Errorf("status = %+v", got)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name   string
		checks []CheckStatus
		want   State
	}{
		{"no checks", nil, StateUnknown},
		{"all success", []CheckStatus{{State: StateSuccess}, {State: StateSuccess}}, StateSuccess},
		{"failure wins over pending", []CheckStatus{{State: StatePending}, {State: StateFailure}}, StateFailure},
		{"pending wins over success", []CheckStatus{{State: StateSuccess}, {State: StatePending}}, StatePending},
		{"unknown check degrades", []CheckStatus{{State: StateSuccess}, {State: StateUnknown}}, StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.checks); got != tt.want {
				t.Errorf("Combine = %q, want %q", got, tt.want)
			}
		})
	}
}
