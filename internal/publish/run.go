package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/khidmaapp/availability/internal/marketplace"
	"github.com/khidmaapp/availability/internal/plan"
)

// Step names, in execution order. A run resumes from its first step that
// is not done, so a crash between steps never replays completed work.
const (
	StepUpdatePlan       = "update_plan"
	StepDeleteExceptions = "delete_exceptions"
	StepCreateExceptions = "create_exceptions"
	StepEnsureOpen       = "ensure_open"
)

var stepOrder = []string{StepUpdatePlan, StepDeleteExceptions, StepCreateExceptions, StepEnsureOpen}

const (
	StepPending = "pending"
	StepDone    = "done"
	StepFailed  = "failed"
)

// Run statuses.
const (
	StatusPending          = "pending"
	StatusPublished        = "published"
	StatusPartiallyApplied = "partially_applied"
)

// Run is one attempt to push a listing's draft availability to the
// marketplace. The plan and exceptions are snapshotted at creation so
// later draft edits do not bleed into an in-flight run.
type Run struct {
	ID          string
	ListingID   string
	Status      string
	Steps       map[string]string
	Plan        []byte
	Exceptions  []byte
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	LastError   string
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newSteps() map[string]string {
	steps := make(map[string]string, len(stepOrder))
	for _, s := range stepOrder {
		steps[s] = StepPending
	}
	return steps
}

// DoneSteps lists completed steps in execution order.
func (r *Run) DoneSteps() []string {
	var done []string
	for _, s := range stepOrder {
		if r.Steps[s] == StepDone {
			done = append(done, s)
		}
	}
	return done
}

// FailedStep returns the failed step name, or "".
func (r *Run) FailedStep() string {
	for _, s := range stepOrder {
		if r.Steps[s] == StepFailed {
			return s
		}
	}
	return ""
}

// execute walks the run's steps in order, skipping the ones already done,
// and mutates the step map as it goes. On error the failing step is marked
// failed and the remaining steps are left pending; the caller decides
// whether to retry or give up.
func execute(ctx context.Context, client marketplace.Client, run *Run) error {
	for _, step := range stepOrder {
		if run.Steps[step] == StepDone {
			continue
		}
		if err := executeStep(ctx, client, run, step); err != nil {
			run.Steps[step] = StepFailed
			return fmt.Errorf("step %s: %w", step, err)
		}
		run.Steps[step] = StepDone
	}
	return nil
}

func executeStep(ctx context.Context, client marketplace.Client, run *Run, step string) error {
	switch step {
	case StepUpdatePlan:
		var wire plan.Wire
		if err := json.Unmarshal(run.Plan, &wire); err != nil {
			return fmt.Errorf("decode plan snapshot: %w", err)
		}
		return client.UpdatePlan(ctx, run.ListingID, wire)

	case StepDeleteExceptions:
		existing, err := client.ListExceptions(ctx, run.ListingID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(existing))
		for _, e := range existing {
			ids = append(ids, e.ID)
		}
		return client.DeleteExceptions(ctx, run.ListingID, ids)

	case StepCreateExceptions:
		var excs []plan.WireException
		if err := json.Unmarshal(run.Exceptions, &excs); err != nil {
			return fmt.Errorf("decode exceptions snapshot: %w", err)
		}
		if len(excs) == 0 {
			return nil
		}
		// A retry after a mid-step crash must not duplicate the
		// exceptions that already made it across.
		existing, err := client.ListExceptions(ctx, run.ListingID)
		if err != nil {
			return err
		}
		for _, exc := range excs {
			if hasException(existing, exc) {
				continue
			}
			if err := client.CreateException(ctx, exc); err != nil {
				return err
			}
		}
		return nil

	case StepEnsureOpen:
		return client.EnsureOpen(ctx, run.ListingID)
	}
	return fmt.Errorf("unknown step %q", step)
}

func hasException(existing []plan.ExceptionResource, exc plan.WireException) bool {
	for _, e := range existing {
		if e.Start.Equal(exc.Start) && e.End.Equal(exc.End) && e.Seats == exc.Seats {
			return true
		}
	}
	return false
}
