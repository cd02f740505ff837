package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidOwner = errors.New("invalid owner")
	ErrRunNotFound  = errors.New("run not found")
)

// RunService records pipeline runs in the ledger.
type RunService struct {
	repo RunRepository
	now  func() time.Time
}

// NewRunService creates a new RunService.
func NewRunService(repo RunRepository) *RunService {
	return &RunService{repo: repo, now: time.Now}
}

// Begin stores a new running run and returns it.
func (s *RunService) Begin(ctx context.Context, owner, dir string) (*Run, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	run := Run{
		ID:        uuid.NewString(),
		Owner:     owner,
		Dir:       dir,
		Status:    RunRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.StartRun(ctx, run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Record stores one outcome of the run.
func (s *RunService) Record(ctx context.Context, runID string, o Outcome) error {
	return s.repo.SaveOutcome(ctx, runID, o)
}

// Finish stores the final tallies. A run error marks the run aborted.
func (s *RunService) Finish(ctx context.Context, runID string, stats Stats, runErr error) error {
	return s.repo.FinishRun(ctx, runID, StatusFor(stats, runErr), stats)
}

// Get retrieves a run by ID.
func (s *RunService) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.GetRun(ctx, id)
}

// Latest retrieves the most recently started run.
func (s *RunService) Latest(ctx context.Context) (*Run, error) {
	return s.repo.LatestRun(ctx)
}

// History lists recent runs, newest first.
func (s *RunService) History(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListRuns(ctx, limit)
}

// Failures lists the failed outcomes of a run.
func (s *RunService) Failures(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	return s.repo.ListFailures(ctx, runID)
}

// Recover marks runs left running by a crashed process as aborted.
func (s *RunService) Recover(ctx context.Context) (int64, error) {
	return s.repo.RecoverStale(ctx)
}

// StatusFor derives the final run status from tallies and the run error.
func StatusFor(stats Stats, runErr error) RunStatus {
	switch {
	case runErr != nil:
		return RunAborted
	case len(stats.Failures) > 0:
		return RunPartial
	default:
		return RunSucceeded
	}
}
