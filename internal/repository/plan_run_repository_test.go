package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-planner/internal/models"
)

func newPlanRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var planRunRowColumns = []string{"id", "label", "requested_by", "version", "status", "meta", "created_at", "updated_at"}

func TestPlanRunRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM plan_runs WHERE label = $1")).
		WithArgs("fall-term").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plan_runs")).
		WithArgs(sqlmock.AnyArg(), "fall-term", "planner", 3, string(models.PlanRunStatusDraft), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.PlanRun{
		Label:       "fall-term",
		RequestedBy: "planner",
		Meta:        types.JSONText(`{"cost":12.5}`),
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, run))
	assert.Equal(t, 3, run.Version)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.PlanRunStatusDraft, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRunRepositoryCreateVersionedRequiresLabel(t *testing.T) {
	db, _, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.PlanRun{}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestPlanRunRepositoryList(t *testing.T) {
	db, mock, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(planRunRowColumns).
		AddRow("run-2", "fall-term", "planner", 2, string(models.PlanRunStatusDraft), types.JSONText(`{}`), now, now).
		AddRow("run-1", "fall-term", "planner", 1, string(models.PlanRunStatusDraft), types.JSONText(`{}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, label, requested_by, version, status, meta, created_at, updated_at FROM plan_runs WHERE 1=1 AND label = $1 AND status = $2 ORDER BY created_at DESC, version DESC LIMIT 10 OFFSET 10")).
		WithArgs("fall-term", models.PlanRunStatusDraft).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM plan_runs WHERE 1=1 AND label = $1 AND status = $2")).
		WithArgs("fall-term", models.PlanRunStatusDraft).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	list, total, err := repo.List(context.Background(), models.PlanRunFilter{
		Label:    "fall-term",
		Status:   models.PlanRunStatusDraft,
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 12, total)
	assert.Equal(t, "run-2", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRunRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM plan_runs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRunRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plan_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "run-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRunRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newPlanRunRepoMock(t)
	defer cleanup()
	repo := NewPlanRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE plan_runs SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.PlanRunStatusPublished, sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "run-1", models.PlanRunStatusPublished, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
