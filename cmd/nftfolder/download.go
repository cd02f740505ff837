package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cwygoda/nftfolder/internal/adapter/fetcher"
	httpAdapter "github.com/cwygoda/nftfolder/internal/adapter/http"
	"github.com/cwygoda/nftfolder/internal/adapter/simplehash"
	"github.com/cwygoda/nftfolder/internal/adapter/sqlite"
	"github.com/cwygoda/nftfolder/internal/domain"
	"github.com/cwygoda/nftfolder/internal/logging"
	"github.com/cwygoda/nftfolder/internal/metrics"
	"github.com/cwygoda/nftfolder/internal/progress"
	"github.com/cwygoda/nftfolder/internal/worker"
)

// download runs the whole pipeline for owner.
func (a *app) download(ctx context.Context, owner string) error {
	cfg := a.cfg
	if err := cfg.Validate(owner); err != nil {
		return withCode(exitUsage, err)
	}

	dir := cfg.ResolveDir(owner)
	a.log.Info("starting",
		"owner", owner,
		"dir", dir,
		"db", cfg.DBPath,
		"api_key", logging.MaskKey(cfg.APIKey),
	)

	if err := fetcher.EnsureDir(dir); err != nil {
		return withCode(exitSetup, fmt.Errorf("destination: %w", err))
	}

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return withCode(exitSetup, fmt.Errorf("open ledger: %w", err))
	}
	defer repo.Close()

	runs := domain.NewRunService(repo)
	if recovered, err := runs.Recover(ctx); err != nil {
		a.log.Warn("failed to recover stale runs", "error", err)
	} else if recovered > 0 {
		a.log.Info("marked stale runs aborted", "count", recovered)
	}

	run, err := runs.Begin(ctx, owner, dir)
	if err != nil {
		return withCode(exitSetup, fmt.Errorf("start run: %w", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(reg)

	source := simplehash.NewClient(simplehash.Options{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Chains:       cfg.Chains,
		PageSize:     cfg.PageSize,
		PageInterval: cfg.PageInterval,
		HTTPClient:   &http.Client{Timeout: cfg.PageTimeout},
		Logger:       a.log,
		Metrics:      m,
	})
	registry := fetcher.NewRegistry(
		fetcher.NewInlineFetcher(),
		fetcher.NewHTTPFetcher(&http.Client{}),
	)
	agg := domain.NewAggregator()

	opts := worker.Options{
		Dir:         dir,
		Concurrency: cfg.Concurrency,
		Logger:      a.log,
		Metrics:     m,
		Ledger:      runs,
		RunID:       run.ID,
	}

	var reporter *progress.Reporter
	if !cfg.Quiet {
		reporter = progress.NewReporter(progress.Options{
			Output:         a.stderr,
			UpdateInterval: cfg.ProgressInterval,
		})
		opts.Sink = reporter
	}

	if cfg.StatusAddr != "" {
		srv := httpAdapter.NewServer(agg, httpAdapter.Options{
			Addr:     cfg.StatusAddr,
			Owner:    owner,
			RunID:    run.ID,
			Logger:   a.log,
			Runs:     runs,
			Gatherer: reg,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				a.log.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn("status server shutdown", "error", err)
			}
		}()
	}

	if reporter != nil {
		reporter.Start()
	}
	stats, runErr := worker.New(source, domain.NewLocator(cfg.Gateway, cfg.MaxExtension), registry, agg, opts).Run(ctx, owner)
	if reporter != nil {
		reporter.Stop()
	}

	// The run is recorded even after an interrupt.
	finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runs.Finish(finishCtx, run.ID, stats, runErr); err != nil {
		a.log.Error("failed to record run", "run_id", run.ID, "error", err)
	}

	progress.WriteSummary(a.stdout, stats)

	switch {
	case runErr != nil:
		return withCode(exitAborted, fmt.Errorf("run aborted: %w", runErr))
	case len(stats.Failures) > 0:
		return withCode(exitPartial, fmt.Errorf("%d of %d records failed (run %s)",
			len(stats.Failures), stats.Discovered+locatorFailures(stats), run.ID))
	default:
		return nil
	}
}

// locatorFailures counts failures of records that were never discovered.
func locatorFailures(stats domain.Stats) int {
	n := 0
	for _, o := range stats.Failures {
		var le *domain.LocatorError
		if errors.As(o.Err, &le) {
			n++
		}
	}
	return n
}
