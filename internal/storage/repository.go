package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/khidmaapp/availability/internal/exceptions"
	"github.com/khidmaapp/availability/internal/schedule"
	"github.com/khidmaapp/availability/libs/db"
)

// ScheduleRecord is a listing's draft availability as stored.
type ScheduleRecord struct {
	ListingID string
	Weekly    schedule.Weekly
	Timezone  string
	UpdatedAt time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) GetSchedule(ctx context.Context, listingID string) (ScheduleRecord, error) {
	var rec ScheduleRecord
	var weeklyRaw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT listing_id, weekly, timezone, updated_at
		FROM listing_schedules
		WHERE listing_id = $1
	`, listingID).Scan(&rec.ListingID, &weeklyRaw, &rec.Timezone, &rec.UpdatedAt)
	if err != nil {
		return ScheduleRecord{}, err
	}
	if err := json.Unmarshal(weeklyRaw, &rec.Weekly); err != nil {
		return ScheduleRecord{}, err
	}
	return rec, nil
}

func (r *Repository) ReplaceSchedule(ctx context.Context, listingID string, weekly schedule.Weekly, timezone string) error {
	raw, err := json.Marshal(weekly)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO listing_schedules (listing_id, weekly, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (listing_id) DO UPDATE
		SET weekly = EXCLUDED.weekly,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, listingID, raw, timezone)
	return err
}

// SeedSchedule creates an all-closed draft for a newly drafted listing.
// It is a no-op when a schedule already exists, so redelivered events
// never clobber provider edits.
func (r *Repository) SeedSchedule(ctx context.Context, listingID string, timezone string) error {
	raw, err := json.Marshal(schedule.NewWeekly())
	if err != nil {
		return err
	}
	if timezone == "" {
		timezone = "Asia/Riyadh"
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO listing_schedules (listing_id, weekly, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (listing_id) DO NOTHING
	`, listingID, raw, timezone)
	return err
}

func (r *Repository) ListExceptions(ctx context.Context, listingID string) ([]exceptions.Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, start_date::text, end_date::text, available
		FROM listing_exceptions
		WHERE listing_id = $1
		ORDER BY created_at ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []exceptions.Exception
	for rows.Next() {
		var exc exceptions.Exception
		if err := rows.Scan(&exc.ID, &exc.StartDate, &exc.EndDate, &exc.Available); err != nil {
			return nil, err
		}
		list = append(list, exc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return list, nil
}

func (r *Repository) InsertException(ctx context.Context, listingID string, exc exceptions.Exception) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO listing_exceptions (id, listing_id, start_date, end_date, available)
		VALUES ($1, $2, $3, $4, $5)
	`, exc.ID, listingID, exc.StartDate, exc.EndDate, exc.Available)
	return err
}

func (r *Repository) DeleteException(ctx context.Context, listingID string, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM listing_exceptions
		WHERE id = $1 AND listing_id = $2
	`, id, listingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
