package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-planner/internal/models"
)

const planRunColumns = `id, label, requested_by, version, status, meta, created_at, updated_at`

// PlanRunRepository persists versioned plan run snapshots.
type PlanRunRepository struct {
	db *sqlx.DB
}

// NewPlanRunRepository constructs repository.
func NewPlanRunRepository(db *sqlx.DB) *PlanRunRepository {
	return &PlanRunRepository{db: db}
}

func (r *PlanRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for its label.
func (r *PlanRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.PlanRun) error {
	if run == nil {
		return fmt.Errorf("plan run payload is nil")
	}
	if run.Label == "" {
		return fmt.Errorf("label is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.PlanRunStatusDraft
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM plan_runs WHERE label = $1`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.Label); err != nil {
		return fmt.Errorf("compute next plan run version: %w", err)
	}

	const insertQuery = `
INSERT INTO plan_runs (id, label, requested_by, version, status, meta, created_at, updated_at)
VALUES (:id, :label, :requested_by, :version, :status, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert plan run: %w", err)
	}
	return nil
}

// List returns a page of runs, newest first, together with the total row count.
func (r *PlanRunRepository) List(ctx context.Context, filter models.PlanRunFilter) ([]models.PlanRun, int, error) {
	baseQuery := `FROM plan_runs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Label != "" {
		conditions = append(conditions, fmt.Sprintf("label = $%d", len(args)+1))
		args = append(args, filter.Label)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, version DESC LIMIT %d OFFSET %d", planRunColumns, baseQuery, pageSize, offset)
	var runs []models.PlanRun
	if err := r.db.SelectContext(ctx, &runs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list plan runs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plan runs: %w", err)
	}
	return runs, total, nil
}

// FindByID loads a run by its identifier.
func (r *PlanRunRepository) FindByID(ctx context.Context, id string) (*models.PlanRun, error) {
	query := `SELECT ` + planRunColumns + ` FROM plan_runs WHERE id = $1`
	var run models.PlanRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// Delete removes a run. Entries cascade.
func (r *PlanRunRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM plan_runs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete plan run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("plan run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus updates the status (and optionally meta) of a run.
func (r *PlanRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PlanRunStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE plan_runs SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, meta, now, id}
	} else {
		query = `UPDATE plan_runs SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update plan run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("plan run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
