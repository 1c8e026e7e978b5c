package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/middleware"
	"github.com/noah-isme/sma-adp-planner/internal/models"
	"github.com/noah-isme/sma-adp-planner/internal/service"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

type plannerServiceStub struct {
	planResp    *dto.PlanResponse
	planErr     error
	submitResp  *dto.ProposalResponse
	proposal    *dto.ProposalResponse
	proposalErr error
	saveRun     *models.PlanRun
	saveErr     error
	runs        []models.PlanRun
	entries     []models.PlanRunEntry
	deleteErr   error

	lastActor string
	lastQuery dto.PlanRunQuery
	lastSave  dto.SavePlanRequest
}

func (s *plannerServiceStub) Plan(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.PlanResponse, error) {
	s.lastActor = requestedBy
	return s.planResp, s.planErr
}

func (s *plannerServiceStub) Submit(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.ProposalResponse, error) {
	s.lastActor = requestedBy
	return s.submitResp, nil
}

func (s *plannerServiceStub) Proposal(ctx context.Context, id string) (*dto.ProposalResponse, error) {
	return s.proposal, s.proposalErr
}

func (s *plannerServiceStub) Save(ctx context.Context, req dto.SavePlanRequest, requestedBy string) (*models.PlanRun, error) {
	s.lastActor = requestedBy
	s.lastSave = req
	return s.saveRun, s.saveErr
}

func (s *plannerServiceStub) List(ctx context.Context, query dto.PlanRunQuery) ([]models.PlanRun, *models.Pagination, error) {
	s.lastQuery = query
	return s.runs, &models.Pagination{Page: 1, PageSize: 20, TotalRows: len(s.runs)}, nil
}

func (s *plannerServiceStub) Entries(ctx context.Context, runID string) ([]models.PlanRunEntry, error) {
	return s.entries, nil
}

func (s *plannerServiceStub) Delete(ctx context.Context, runID string) error {
	return s.deleteErr
}

type exporterStub struct {
	resp     *dto.ExportResponse
	path     string
	query    dto.ExportQuery
	download error
}

func (e *exporterStub) Export(ctx context.Context, proposalID string, query dto.ExportQuery) (*dto.ExportResponse, error) {
	e.query = query
	return e.resp, nil
}

func (e *exporterStub) Download(ctx context.Context, token string) (*service.ExportDownload, error) {
	if e.download != nil {
		return nil, e.download
	}
	file, err := os.Open(e.path)
	if err != nil {
		return nil, err
	}
	return &service.ExportDownload{File: file, Filename: filepath.Base(e.path), Format: service.ExportFormatCSV}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func samplePlanPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(dto.PlanRequest{
		Sections: []dto.SectionRequest{
			{Code: "MATH101", Suffix: "a", ECTS: 6, Slots: []dto.SlotRequest{{Day: 1, Period: 1}}},
		},
		Selection: map[string]string{"MATH101": "MANDATORY"},
	})
	require.NoError(t, err)
	return payload
}

func TestPlannerHandlerPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{planResp: &dto.PlanResponse{
		ProposalID: "proposal-1",
		Schedules:  []dto.ScheduleView{{Rank: 1, Key: "MATH101.a"}},
		Cached:     true,
	}}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/plans", samplePlanPayload(t))
	handler.Plan(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, anonymousActor, svc.lastActor)
	var body struct {
		Data dto.PlanResponse       `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "proposal-1", body.Data.ProposalID)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Equal(t, "proposal-1", body.Meta["proposal_id"])
}

func TestPlannerHandlerPlanRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPlannerHandler(&plannerServiceStub{}, nil)

	c, w := newGinContext(http.MethodPost, "/plans", []byte("{"))
	handler.Plan(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlannerHandlerPlanMapsInfeasibleTo422(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{planErr: appErrors.Clone(appErrors.ErrNoFeasibleSchedule, "no feasible schedule (pair limit)")}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/plans", samplePlanPayload(t))
	handler.Plan(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrNoFeasibleSchedule.Code)
}

func TestPlannerHandlerSubmitAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{submitResp: &dto.ProposalResponse{ProposalID: "p-1", Status: dto.ProposalPending}}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodPost, "/plans/async", samplePlanPayload(t))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "planner"})
	handler.Submit(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "planner", svc.lastActor)
}

func TestPlannerHandlerProposalNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{proposalErr: appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodGet, "/plans/proposals/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Proposal(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlannerHandlerSaveCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{saveRun: &models.PlanRun{ID: "run-1", Label: "fall", Version: 2, Status: models.PlanRunStatusDraft}}
	handler := NewPlannerHandler(svc, nil)

	payload, _ := json.Marshal(dto.SavePlanRequest{ProposalID: "p-1", Label: "fall"})
	c, w := newGinContext(http.MethodPost, "/plans/save", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "planner"})
	handler.Save(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "planner", svc.lastActor)
	assert.Equal(t, "fall", svc.lastSave.Label)
}

func TestPlannerHandlerListBindsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{runs: []models.PlanRun{{ID: "run-1", Label: "fall"}}}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodGet, "/plan-runs?label=fall&status=DRAFT&page=2&pageSize=5", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.PlanRunQuery{Label: "fall", Status: "DRAFT", Page: 2, PageSize: 5}, svc.lastQuery)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestPlannerHandlerDeleteConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &plannerServiceStub{deleteErr: appErrors.Clone(appErrors.ErrConflict, "only draft plan runs can be deleted")}
	handler := NewPlannerHandler(svc, nil)

	c, w := newGinContext(http.MethodDelete, "/plan-runs/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlannerHandlerExportAndDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "timetable.csv")
	require.NoError(t, os.WriteFile(path, []byte("rank,course\n1,MATH101\n"), 0o644))
	exporter := &exporterStub{resp: &dto.ExportResponse{URL: "/api/v1/exports/token", Format: "csv"}, path: path}
	handler := NewPlannerHandler(&plannerServiceStub{}, exporter)

	c, w := newGinContext(http.MethodGet, "/plans/proposals/p-1/export?format=csv&rank=2", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, exporter.query.Rank)

	c, w = newGinContext(http.MethodGet, "/exports/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Equal(t, "rank,course\n1,MATH101\n", w.Body.String())
}

func TestPlannerHandlerExportRejectsBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPlannerHandler(&plannerServiceStub{}, &exporterStub{})

	c, w := newGinContext(http.MethodGet, "/plans/proposals/p-1/export?rank=abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlannerHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPlannerHandler(&plannerServiceStub{}, &exporterStub{download: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})

	c, w := newGinContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
