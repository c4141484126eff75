package triage

import "context"

// Store holds the triage results of a run.
type Store interface {
	Get(ctx context.Context, id string) (*Result, bool, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*Result, bool, error)
	Put(ctx context.Context, result *Result) error
	List(ctx context.Context) ([]*Result, error)
}

// Notifier receives the summary of a finished run.
type Notifier interface {
	Send(ctx context.Context, summary *Summary) error
}
