package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/khidmaapp/availability/internal/marketplace"
	"github.com/khidmaapp/availability/internal/outbox"
	"github.com/khidmaapp/availability/libs/db"
	otelx "github.com/khidmaapp/availability/libs/otel"
)

type Worker struct {
	pool      *db.Pool
	runs      *Repository
	outbox    *outbox.Repository
	client    marketplace.Client
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, runs *Repository, outboxRepo *outbox.Repository, client marketplace.Client, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	return &Worker{
		pool:      pool,
		runs:      runs,
		outbox:    outboxRepo,
		client:    client,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("publish batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	runs, err := w.runs.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return tx.Commit(ctx)
	}

	for _, run := range runs {
		runCtx := otelx.ContextWithTraceContext(ctx, run.Traceparent, run.Tracestate)
		if err := w.processRun(runCtx, tx, run); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (w *Worker) processRun(ctx context.Context, tx pgx.Tx, run Run) error {
	execErr := execute(ctx, w.client, &run)
	run.Attempts++

	if execErr == nil {
		if err := w.runs.MarkPublished(ctx, tx, run); err != nil {
			return err
		}
		w.logger.Info("availability published", "listing_id", run.ListingID, "run_id", run.ID, "attempts", run.Attempts)
		return w.outbox.Insert(ctx, tx, outbox.NewPlanPublished(run.ListingID, outbox.PlanPublishedPayload{
			ListingID:   run.ListingID,
			RunID:       run.ID,
			PublishedAt: time.Now().UTC().Format(time.RFC3339),
		}))
	}

	if run.Attempts < run.MaxAttempts {
		// The failed step goes back to pending so the next attempt
		// resumes there instead of giving up on it.
		if failed := run.FailedStep(); failed != "" {
			run.Steps[failed] = StepPending
		}
		nextRunAt := time.Now().UTC().Add(w.backoff)
		w.logger.Warn("publish run will retry", "listing_id", run.ListingID, "run_id", run.ID, "attempts", run.Attempts, "err", execErr)
		return w.runs.MarkRetry(ctx, tx, run, nextRunAt, execErr.Error())
	}

	if err := w.runs.MarkPartiallyApplied(ctx, tx, run, execErr.Error()); err != nil {
		return err
	}
	w.logger.Error("publish run exhausted retries", "listing_id", run.ListingID, "run_id", run.ID, "failed_step", run.FailedStep(), "err", execErr)
	return w.outbox.Insert(ctx, tx, outbox.NewPlanPartial(run.ListingID, outbox.PlanPartialPayload{
		ListingID:  run.ListingID,
		RunID:      run.ID,
		DoneSteps:  run.DoneSteps(),
		FailedStep: run.FailedStep(),
		LastError:  execErr.Error(),
		ReportedAt: time.Now().UTC().Format(time.RFC3339),
	}))
}
