package domain

import "sync"

// Stats is a consistent snapshot of the aggregator.
type Stats struct {
	Discovered int
	Completed  int
	Skipped    int
	Saved      int
	Bytes      int64
	Failures   []Outcome
}

// Aggregator tallies discovered and completed records for one run.
// It is safe for concurrent use.
type Aggregator struct {
	mu         sync.Mutex
	discovered int
	completed  int
	skipped    int
	saved      int
	bytes      int64
	failures   []Outcome
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// RecordDiscovered counts a record that was located successfully.
func (a *Aggregator) RecordDiscovered() {
	a.mu.Lock()
	a.discovered++
	a.mu.Unlock()
}

// RecordCompleted counts a resolved record and keeps it if it failed.
func (a *Aggregator) RecordCompleted(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.completed++
	switch o.Kind {
	case OutcomeSkipped:
		a.skipped++
	case OutcomeSaved:
		a.saved++
		a.bytes += o.Bytes
	case OutcomeFailed:
		a.failures = append(a.failures, o)
	}
}

// RecordLocatorFailure keeps a failure for a record that was never
// discovered. It does not touch the discovered or completed counts.
func (a *Aggregator) RecordLocatorFailure(o Outcome) {
	o.Kind = OutcomeFailed
	a.mu.Lock()
	a.failures = append(a.failures, o)
	a.mu.Unlock()
}

// Snapshot returns a copy of the current tallies.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	failures := make([]Outcome, len(a.failures))
	copy(failures, a.failures)
	return Stats{
		Discovered: a.discovered,
		Completed:  a.completed,
		Skipped:    a.skipped,
		Saved:      a.saved,
		Bytes:      a.bytes,
		Failures:   failures,
	}
}

// Succeeded reports whether the run so far has no failures.
func (a *Aggregator) Succeeded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.failures) == 0
}
