package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-planner/internal/models"
)

// PlanRunEntryRepository stores the slots of saved schedules.
type PlanRunEntryRepository struct {
	db *sqlx.DB
}

// NewPlanRunEntryRepository builds repository.
func NewPlanRunEntryRepository(db *sqlx.DB) *PlanRunEntryRepository {
	return &PlanRunEntryRepository{db: db}
}

func (r *PlanRunEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes entries one statement at a time so it runs inside the caller's transaction.
func (r *PlanRunEntryRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.PlanRunEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO plan_run_entries (id, plan_run_id, rank, course_code, section_id, kind, ects, day_of_week, period, created_at)
VALUES (:id, :plan_run_id, :rank, :course_code, :section_id, :kind, :ects, :day_of_week, :period, :created_at)`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert plan run entry: %w", err)
		}
	}
	return nil
}

// ListByRun returns entries ordered by rank, then day and period.
func (r *PlanRunEntryRepository) ListByRun(ctx context.Context, runID string) ([]models.PlanRunEntry, error) {
	const query = `SELECT id, plan_run_id, rank, course_code, section_id, kind, ects, day_of_week, period, created_at
FROM plan_run_entries WHERE plan_run_id = $1 ORDER BY rank ASC, day_of_week ASC, period ASC, section_id ASC`
	var entries []models.PlanRunEntry
	if err := r.db.SelectContext(ctx, &entries, query, runID); err != nil {
		return nil, fmt.Errorf("list plan run entries: %w", err)
	}
	return entries, nil
}
