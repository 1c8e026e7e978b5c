package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/middleware"
	"github.com/noah-isme/sma-adp-planner/internal/models"
	"github.com/noah-isme/sma-adp-planner/internal/service"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
	"github.com/noah-isme/sma-adp-planner/pkg/response"
)

type plannerService interface {
	Plan(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.PlanResponse, error)
	Submit(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.ProposalResponse, error)
	Proposal(ctx context.Context, id string) (*dto.ProposalResponse, error)
	Save(ctx context.Context, req dto.SavePlanRequest, requestedBy string) (*models.PlanRun, error)
	List(ctx context.Context, query dto.PlanRunQuery) ([]models.PlanRun, *models.Pagination, error)
	Entries(ctx context.Context, runID string) ([]models.PlanRunEntry, error)
	Delete(ctx context.Context, runID string) error
}

type timetableExporter interface {
	Export(ctx context.Context, proposalID string, query dto.ExportQuery) (*dto.ExportResponse, error)
	Download(ctx context.Context, token string) (*service.ExportDownload, error)
}

// PlannerHandler exposes the planning and plan run endpoints.
type PlannerHandler struct {
	planner  plannerService
	exporter timetableExporter
}

// NewPlannerHandler constructs the handler. exporter may be nil when exports are disabled.
func NewPlannerHandler(planner plannerService, exporter timetableExporter) *PlannerHandler {
	return &PlannerHandler{planner: planner, exporter: exporter}
}

// Plan godoc
// @Summary Preview ranked weekly schedules
// @Description Runs the planner synchronously and keeps the result as a proposal that can be exported or saved
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /plans [post]
func (h *PlannerHandler) Plan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	res, err := h.planner.Plan(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, res.Cached)
	middleware.SetMeta(c, "proposal_id", res.ProposalID)
	response.JSON(c, http.StatusOK, res, nil, middleware.ExtractMeta(c))
}

// Submit godoc
// @Summary Queue a planning run
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Plan payload"
// @Success 202 {object} response.Envelope
// @Router /plans/async [post]
func (h *PlannerHandler) Submit(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	res, err := h.planner.Submit(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, res)
}

// Proposal godoc
// @Summary Fetch a proposal
// @Tags Planner
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/proposals/{id} [get]
func (h *PlannerHandler) Proposal(c *gin.Context) {
	res, err := h.planner.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Export godoc
// @Summary Export one schedule of a proposal
// @Tags Planner
// @Produce json
// @Param id path string true "Proposal ID"
// @Param format query string false "csv or pdf"
// @Param rank query int false "Schedule rank, 1 is best"
// @Success 200 {object} response.Envelope
// @Router /plans/proposals/{id}/export [get]
func (h *PlannerHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "exports are not configured"))
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	res, err := h.exporter.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Download godoc
// @Summary Download an exported timetable
// @Tags Planner
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *PlannerHandler) Download(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "exports are not configured"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.exporter.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := result.File.Stat(); statErr == nil {
		size = info.Size()
	}
	contentType := "text/csv"
	if result.Format == service.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, contentType, result.File, nil)
}

// Save godoc
// @Summary Persist a proposal as a plan run
// @Tags Plan Runs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SavePlanRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /plans/save [post]
func (h *PlannerHandler) Save(c *gin.Context) {
	var req dto.SavePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	run, err := h.planner.Save(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// List godoc
// @Summary List saved plan runs
// @Tags Plan Runs
// @Produce json
// @Param label query string false "Label"
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plan-runs [get]
func (h *PlannerHandler) List(c *gin.Context) {
	var query dto.PlanRunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan run query"))
		return
	}
	runs, pagination, err := h.planner.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Entries godoc
// @Summary List the stored slots of a plan run
// @Tags Plan Runs
// @Produce json
// @Param id path string true "Plan run ID"
// @Success 200 {object} response.Envelope
// @Router /plan-runs/{id}/entries [get]
func (h *PlannerHandler) Entries(c *gin.Context) {
	entries, err := h.planner.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Delete godoc
// @Summary Delete a draft plan run
// @Tags Plan Runs
// @Security BearerAuth
// @Param id path string true "Plan run ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /plan-runs/{id} [delete]
func (h *PlannerHandler) Delete(c *gin.Context) {
	if err := h.planner.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
