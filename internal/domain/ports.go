package domain

import (
	"context"
	"iter"
	"time"
)

// RecordSource is the driven port for the paginated owner listing.
//
// Each call returns a fresh sequence starting at the first page. A page
// failure is yielded once as a *PageFetchError and ends the sequence.
type RecordSource interface {
	Records(ctx context.Context, owner string) iter.Seq2[Record, error]
}

// AssetFetcher is the driven port for writing one located asset to disk.
type AssetFetcher interface {
	Name() string
	Match(asset Asset) bool
	// Fetch creates path exclusively and writes the asset into it, offering
	// byte progress to the channel without blocking. It returns the number of
	// bytes written. Errors wrap one of the download sentinels.
	Fetch(ctx context.Context, asset Asset, path string, progress chan<- ByteProgress) (int64, error)
}

// ProgressSink receives tallies for display. Implementations must not block.
type ProgressSink interface {
	Discovered()
	Completed(o Outcome)
	// LocatorFailed reports a record that failed before it was discovered.
	LocatorFailed(o Outcome)
	Progress() chan<- ByteProgress
}

// Run is one pipeline execution as stored in the ledger.
type Run struct {
	ID         string
	Owner      string
	Dir        string
	Status     RunStatus
	Discovered int
	Completed  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStatus is the final state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunAborted   RunStatus = "aborted"
)

// OutcomeRecord is a stored outcome.
type OutcomeRecord struct {
	RunID     string
	Name      string
	Kind      OutcomeKind
	Path      string
	URL       string
	Bytes     int64
	Error     string
	CreatedAt time.Time
}

// RunRepository is the driven port for the run ledger.
type RunRepository interface {
	StartRun(ctx context.Context, run Run) error
	SaveOutcome(ctx context.Context, runID string, o Outcome) error
	FinishRun(ctx context.Context, runID string, status RunStatus, stats Stats) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListFailures(ctx context.Context, runID string) ([]OutcomeRecord, error)
	// RecoverStale marks runs still in RunRunning as aborted.
	RecoverStale(ctx context.Context) (int64, error)
}
