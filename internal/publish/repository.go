package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/khidmaapp/availability/libs/db"
	otelx "github.com/khidmaapp/availability/libs/otel"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, run Run) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO publish_runs (id, listing_id, status, steps, plan, exceptions, max_attempts, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, $9)
	`, run.ID, run.ListingID, run.Status, steps, run.Plan, run.Exceptions, run.MaxAttempts, traceparent, tracestate)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Run, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, listing_id, status, steps, plan, exceptions, attempts, max_attempts, next_run_at, COALESCE(last_error, ''), traceparent, tracestate, created_at, updated_at
		FROM publish_runs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, run Run) error {
	return r.update(ctx, tx, run, StatusPublished, run.NextRunAt, "")
}

func (r *Repository) MarkRetry(ctx context.Context, tx pgx.Tx, run Run, nextRunAt time.Time, lastError string) error {
	return r.update(ctx, tx, run, StatusPending, nextRunAt, lastError)
}

func (r *Repository) MarkPartiallyApplied(ctx context.Context, tx pgx.Tx, run Run, lastError string) error {
	return r.update(ctx, tx, run, StatusPartiallyApplied, run.NextRunAt, lastError)
}

func (r *Repository) update(ctx context.Context, tx pgx.Tx, run Run, status string, nextRunAt time.Time, lastError string) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE publish_runs
		SET status = $2,
			steps = $3,
			attempts = $4,
			next_run_at = $5,
			last_error = $6,
			updated_at = now()
		WHERE id = $1
	`, run.ID, status, steps, run.Attempts, nextRunAt, lastError)
	return err
}

func (r *Repository) Get(ctx context.Context, runID string) (Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, listing_id, status, steps, plan, exceptions, attempts, max_attempts, next_run_at, COALESCE(last_error, ''), traceparent, tracestate, created_at, updated_at
		FROM publish_runs
		WHERE id = $1
	`, runID)
	return scanRun(row)
}

func (r *Repository) ListByListing(ctx context.Context, listingID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, listing_id, status, steps, plan, exceptions, attempts, max_attempts, next_run_at, COALESCE(last_error, ''), traceparent, tracestate, created_at, updated_at
		FROM publish_runs
		WHERE listing_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, listingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var steps []byte
	if err := row.Scan(
		&run.ID,
		&run.ListingID,
		&run.Status,
		&steps,
		&run.Plan,
		&run.Exceptions,
		&run.Attempts,
		&run.MaxAttempts,
		&run.NextRunAt,
		&run.LastError,
		&run.Traceparent,
		&run.Tracestate,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return Run{}, err
	}
	return run, nil
}
