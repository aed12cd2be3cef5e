package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/khidmaapp/availability/internal/exceptions"
	"github.com/khidmaapp/availability/internal/plan"
	"github.com/khidmaapp/availability/internal/schedule"
	"github.com/khidmaapp/availability/internal/storage"
	"github.com/khidmaapp/availability/libs/db"
)

// ErrRunInFlight is returned when a listing already has a pending run.
// The draft snapshot of the in-flight run would race with a new one.
var ErrRunInFlight = errors.New("publish run already in flight for listing")

type Service struct {
	pool        *db.Pool
	store       *storage.Repository
	runs        *Repository
	maxAttempts int
}

func NewService(pool *db.Pool, store *storage.Repository, runs *Repository, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{pool: pool, store: store, runs: runs, maxAttempts: maxAttempts}
}

// StartResult reports what was queued and what the converter had to drop
// so the caller can surface it immediately instead of after the worker
// has already pushed the plan.
type StartResult struct {
	RunID             string                         `json:"runId"`
	Status            string                         `json:"status"`
	DroppedSlots      map[string][]schedule.TimeSlot `json:"droppedSlots,omitempty"`
	DroppedExceptions []exceptions.Exception         `json:"droppedExceptions,omitempty"`
}

// StartRun snapshots the listing's draft, validates it, converts it to the
// wire plan and queues a run for the worker.
func (s *Service) StartRun(ctx context.Context, listingID string) (StartResult, error) {
	rec, err := s.store.GetSchedule(ctx, listingID)
	if err != nil {
		return StartResult{}, err
	}
	if err := schedule.Validate(rec.Weekly); err != nil {
		return StartResult{}, fmt.Errorf("schedule not publishable: %w", err)
	}

	excs, err := s.store.ListExceptions(ctx, listingID)
	if err != nil {
		return StartResult{}, err
	}

	wire, droppedSlots := plan.ToWire(rec.Weekly, rec.Timezone)
	validExcs, droppedExcs := plan.FilterForSubmit(excs)

	wireExcs := make([]plan.WireException, 0, len(validExcs))
	for _, exc := range validExcs {
		we, err := plan.ToWireException(exc, listingID)
		if err != nil {
			droppedExcs = append(droppedExcs, exc)
			continue
		}
		wireExcs = append(wireExcs, we)
	}

	planRaw, err := json.Marshal(wire)
	if err != nil {
		return StartResult{}, err
	}
	excsRaw, err := json.Marshal(wireExcs)
	if err != nil {
		return StartResult{}, err
	}

	run := Run{
		ID:          uuid.NewString(),
		ListingID:   listingID,
		Status:      StatusPending,
		Steps:       newSteps(),
		Plan:        planRaw,
		Exceptions:  excsRaw,
		MaxAttempts: s.maxAttempts,
	}

	err = s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT id::text
			FROM publish_runs
			WHERE listing_id = $1 AND status = 'pending'
			FOR UPDATE
		`, listingID).Scan(&existing)
		if err == nil {
			return ErrRunInFlight
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return s.runs.Insert(ctx, tx, run)
	})
	if err != nil {
		return StartResult{}, err
	}

	res := StartResult{RunID: run.ID, Status: run.Status}
	if len(droppedSlots) > 0 {
		res.DroppedSlots = droppedSlots
	}
	if len(droppedExcs) > 0 {
		res.DroppedExceptions = droppedExcs
	}
	return res, nil
}
