package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/nftfolder/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func startRun(t *testing.T, repo *Repository, id string, startedAt time.Time) {
	t.Helper()
	require.NoError(t, repo.StartRun(context.Background(), domain.Run{
		ID:        id,
		Owner:     "0xowner",
		Dir:       "/tmp/nft",
		Status:    domain.RunRunning,
		StartedAt: startedAt,
	}))
}

func TestRepository_StartAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startRun(t, repo, "run-1", started)

	run, err := repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "0xowner", run.Owner)
	assert.Equal(t, "/tmp/nft", run.Dir)
	assert.Equal(t, domain.RunRunning, run.Status)
	assert.True(t, started.Equal(run.StartedAt), "started_at = %v", run.StartedAt)
	assert.True(t, run.FinishedAt.IsZero())
}

func TestRepository_GetRun_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = repo.LatestRun(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRepository_FinishRun(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	startRun(t, repo, "run-1", time.Now())

	failed := domain.Outcome{Kind: domain.OutcomeFailed, Name: "b", Err: domain.ErrTransport}
	stats := domain.Stats{Discovered: 3, Completed: 3, Failures: []domain.Outcome{failed}}
	require.NoError(t, repo.FinishRun(ctx, "run-1", domain.RunPartial, stats))

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPartial, run.Status)
	assert.Equal(t, 3, run.Discovered)
	assert.Equal(t, 3, run.Completed)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.FinishedAt.IsZero())

	err = repo.FinishRun(ctx, "missing", domain.RunSucceeded, domain.Stats{})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRepository_Failures(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	startRun(t, repo, "run-1", time.Now())
	startRun(t, repo, "run-2", time.Now())

	outcomes := []domain.Outcome{
		{Kind: domain.OutcomeSaved, Name: "a", Path: "/tmp/nft/a.png", Bytes: 10},
		{Kind: domain.OutcomeFailed, Name: "b", URL: "https://cdn.example.com/b.png",
			Err: &domain.DownloadError{Name: "b", Err: domain.ErrSizeMismatch}},
		{Kind: domain.OutcomeSkipped, Name: "c"},
		{Kind: domain.OutcomeFailed, Name: "d", Err: &domain.LocatorError{Name: "d", Err: domain.ErrNoImageData}},
	}
	for _, o := range outcomes {
		require.NoError(t, repo.SaveOutcome(ctx, "run-1", o))
	}
	require.NoError(t, repo.SaveOutcome(ctx, "run-2", domain.Outcome{Kind: domain.OutcomeFailed, Name: "z", Err: errors.New("x")}))

	failures, err := repo.ListFailures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "b", failures[0].Name)
	assert.Equal(t, "https://cdn.example.com/b.png", failures[0].URL)
	assert.Contains(t, failures[0].Error, domain.ErrSizeMismatch.Error())
	assert.Equal(t, domain.OutcomeFailed, failures[0].Kind)
	assert.Equal(t, "d", failures[1].Name)
	assert.Contains(t, failures[1].Error, domain.ErrNoImageData.Error())
}

func TestRepository_ConcurrentOutcomes(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	startRun(t, repo, "run-1", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.SaveOutcome(ctx, "run-1", domain.Outcome{Kind: domain.OutcomeFailed, Name: "x", Err: domain.ErrIO}))
		}()
	}
	wg.Wait()

	failures, err := repo.ListFailures(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, failures, 20)
}

func TestRepository_ListRuns(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	startRun(t, repo, "old", base)
	startRun(t, repo, "mid", base.Add(time.Hour))
	startRun(t, repo, "new", base.Add(2*time.Hour))

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
}

func TestRepository_RecoverStale(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	startRun(t, repo, "stale", time.Now())
	startRun(t, repo, "done", time.Now())
	require.NoError(t, repo.FinishRun(ctx, "done", domain.RunSucceeded, domain.Stats{}))

	n, err := repo.RecoverStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	run, err := repo.GetRun(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.RunAborted, run.Status)

	run, err = repo.GetRun(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, run.Status)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	repo, err := New(path)
	require.NoError(t, err)
	startRun(t, repo, "run-1", time.Now())
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.GetRun(context.Background(), "run-1")
	assert.NoError(t, err)
}
