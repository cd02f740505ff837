package worker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cwygoda/nftfolder/internal/adapter/fetcher"
	"github.com/cwygoda/nftfolder/internal/domain"
	"github.com/cwygoda/nftfolder/internal/logging"
	"github.com/cwygoda/nftfolder/internal/metrics"
)

// ErrNoFetcher is reported for assets no registered fetcher accepts.
var ErrNoFetcher = errors.New("no fetcher for asset")

// Options configures a Scheduler. Everything except Dir is optional.
type Options struct {
	Dir         string
	Concurrency int
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Sink        domain.ProgressSink
	Ledger      *domain.RunService
	RunID       string
}

// Scheduler walks the record sequence and downloads every located asset
// with at most Concurrency fetches in flight.
type Scheduler struct {
	source   domain.RecordSource
	locator  *domain.Locator
	registry *fetcher.Registry
	agg      *domain.Aggregator

	dir         string
	concurrency int
	log         *slog.Logger
	metrics     *metrics.Metrics
	sink        domain.ProgressSink
	ledger      *domain.RunService
	runID       string
}

// New creates a new scheduler reporting into agg.
func New(source domain.RecordSource, locator *domain.Locator, registry *fetcher.Registry, agg *domain.Aggregator, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Scheduler{
		source:      source,
		locator:     locator,
		registry:    registry,
		agg:         agg,
		dir:         opts.Dir,
		concurrency: opts.Concurrency,
		log:         opts.Logger.With("component", "scheduler"),
		metrics:     opts.Metrics,
		sink:        opts.Sink,
		ledger:      opts.Ledger,
		runID:       opts.RunID,
	}
}

// Run processes every record of owner and returns once the sequence has
// ended and every dispatched fetch has resolved. The error is the page
// failure that ended the sequence, or the context error after cancellation.
// Per-record failures are only reported through the aggregator.
func (s *Scheduler) Run(ctx context.Context, owner string) (domain.Stats, error) {
	s.log.Info("run started", "owner", owner, "dir", s.dir, "concurrency", s.concurrency)
	start := time.Now()

	permits := semaphore.NewWeighted(int64(s.concurrency))
	var wg sync.WaitGroup
	claimed := make(map[string]struct{})

	var runErr error
	for rec, err := range s.source.Records(ctx, owner) {
		if err != nil {
			runErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		s.schedule(ctx, rec, permits, &wg, claimed)
	}

	wg.Wait()

	stats := s.agg.Snapshot()
	s.log.Info("run finished",
		"discovered", stats.Discovered,
		"saved", stats.Saved,
		"skipped", stats.Skipped,
		"failed", len(stats.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return stats, runErr
}

// schedule locates rec and either resolves it immediately or starts a fetch.
// Acquiring a permit is the only point where it blocks.
func (s *Scheduler) schedule(ctx context.Context, rec domain.Record, permits *semaphore.Weighted, wg *sync.WaitGroup, claimed map[string]struct{}) {
	asset, err := s.locator.Locate(rec)
	if err == nil {
		asset, err = s.claim(asset, rec, claimed)
	}
	if err != nil {
		name := domain.DisplayName(rec)
		if name == "" {
			name = rec.NFTID
		}
		s.log.Warn("record not located", "name", name, "error", err)
		o := domain.Outcome{Kind: domain.OutcomeFailed, Name: name, Err: err}
		s.agg.RecordLocatorFailure(o)
		s.metrics.LocatorFailure()
		if s.sink != nil {
			s.sink.LocatorFailed(o)
		}
		s.persist(o)
		return
	}

	s.agg.RecordDiscovered()
	s.metrics.Discovered()
	if s.sink != nil {
		s.sink.Discovered()
	}

	path := filepath.Join(s.dir, asset.FileName)
	if fetcher.Exists(path) {
		s.log.Debug("already present", "file", asset.FileName)
		s.complete(domain.Outcome{Kind: domain.OutcomeSkipped, Name: asset.Name, Path: path, URL: asset.URL})
		return
	}

	f := s.registry.Match(asset)
	if f == nil {
		s.complete(failed(asset, path, ErrNoFetcher))
		return
	}

	if err := permits.Acquire(ctx, 1); err != nil {
		s.complete(failed(asset, path, err))
		return
	}

	wg.Go(func() {
		defer permits.Release(1)
		s.complete(s.fetch(ctx, f, asset, path))
	})
}

// claim reserves the asset's file name for this run. A clash is resolved by
// appending the token id.
func (s *Scheduler) claim(asset domain.Asset, rec domain.Record, claimed map[string]struct{}) (domain.Asset, error) {
	if _, taken := claimed[asset.FileName]; taken {
		if rec.TokenID == "" {
			return asset, &domain.LocatorError{Name: asset.Name, Err: domain.ErrDuplicateName}
		}
		asset = asset.WithSuffix(rec.TokenID)
		if _, taken := claimed[asset.FileName]; taken {
			return asset, &domain.LocatorError{Name: asset.Name, Err: domain.ErrDuplicateName}
		}
	}
	claimed[asset.FileName] = struct{}{}
	return asset, nil
}

func (s *Scheduler) fetch(ctx context.Context, f domain.AssetFetcher, asset domain.Asset, path string) domain.Outcome {
	s.metrics.FetchStarted()
	start := time.Now()

	var progress chan<- domain.ByteProgress
	if s.sink != nil {
		progress = s.sink.Progress()
	}

	n, err := f.Fetch(ctx, asset, path, progress)

	o := domain.Outcome{Kind: domain.OutcomeSaved, Name: asset.Name, Path: path, URL: asset.URL, Bytes: n}
	if err != nil {
		o = failed(asset, path, err)
		o.Bytes = n
	}
	s.metrics.FetchFinished(f.Name(), o.Kind, time.Since(start))
	return o
}

func (s *Scheduler) complete(o domain.Outcome) {
	if o.Failed() {
		s.log.Warn("download failed", "name", o.Name, "url", o.URL, "error", o.Err)
	} else {
		s.log.Debug("download resolved", "name", o.Name, "kind", o.Kind, "bytes", o.Bytes)
	}
	s.agg.RecordCompleted(o)
	s.metrics.Completed(o)
	if s.sink != nil {
		s.sink.Completed(o)
	}
	s.persist(o)
}

// persist writes the outcome to the ledger. Ledger errors never fail a run.
func (s *Scheduler) persist(o domain.Outcome) {
	if s.ledger == nil || s.runID == "" {
		return
	}
	// Outcomes of a cancelled run are still recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ledger.Record(ctx, s.runID, o); err != nil {
		s.log.Error("ledger write failed", "name", o.Name, "error", err)
	}
}

func failed(asset domain.Asset, path string, err error) domain.Outcome {
	return domain.Outcome{
		Kind: domain.OutcomeFailed,
		Name: asset.Name,
		Path: path,
		URL:  asset.URL,
		Err:  &domain.DownloadError{Name: asset.Name, URL: asset.URL, Err: err},
	}
}
