package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/models"
	"github.com/noah-isme/sma-adp-planner/internal/scheduler"
	"github.com/noah-isme/sma-adp-planner/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
	"github.com/noah-isme/sma-adp-planner/pkg/jobs"
)

type planRunRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.PlanRun) error
	List(ctx context.Context, filter models.PlanRunFilter) ([]models.PlanRun, int, error)
	FindByID(ctx context.Context, id string) (*models.PlanRun, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PlanRunStatus, meta types.JSONText) error
}

type planRunEntryRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.PlanRunEntry) error
	ListByRun(ctx context.Context, runID string) ([]models.PlanRunEntry, error)
}

type planCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type planDispatcher interface {
	Enqueue(job jobs.Job) (string, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// PlannerServiceConfig carries the engine defaults and cache lifetime.
type PlannerServiceConfig struct {
	Engine   config.PlannerConfig
	CacheTTL time.Duration
}

// PlannerService runs the timetable engine for API requests and persists chosen results.
type PlannerService struct {
	runs      planRunRepository
	entries   planRunEntryRepository
	tx        txProvider
	cache     planCache
	queue     planDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PlannerServiceConfig
	store     *proposalStore
}

// NewPlannerService wires planner dependencies. Persistence collaborators may be nil
// for preview-only deployments; Save and the run history then report an internal error.
func NewPlannerService(
	runs planRunRepository,
	entries planRunEntryRepository,
	tx txProvider,
	cache planCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PlannerServiceConfig,
) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Engine.ProposalTTL <= 0 {
		cfg.Engine.ProposalTTL = 30 * time.Minute
	}
	return &PlannerService{
		runs:      runs,
		entries:   entries,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.Engine.ProposalTTL),
	}
}

// UseQueue attaches the dispatcher used by Submit.
func (s *PlannerService) UseQueue(queue planDispatcher) {
	s.queue = queue
}

// Plan runs the engine synchronously and keeps the result as a proposal.
func (s *PlannerService) Plan(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	resp, err := s.execute(ctx, req, "sync")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	resp.ProposalID = uuid.NewString()
	s.store.Save(planProposal{
		ID:          resp.ProposalID,
		Status:      dto.ProposalDone,
		RequestedBy: requestedBy,
		RequestedAt: now,
		FinishedAt:  &now,
		Result:      resp,
	})
	s.metrics.SetActiveProposals(s.store.Len())
	return resp, nil
}

// Submit queues an asynchronous planning run and returns its pending proposal.
func (s *PlannerService) Submit(ctx context.Context, req dto.PlanRequest, requestedBy string) (*dto.ProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	if _, err := EngineInput(s.cfg.Engine, req); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "planning queue unavailable")
	}

	proposal := planProposal{
		ID:          uuid.NewString(),
		Status:      dto.ProposalPending,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
		Request:     req,
	}
	s.store.Save(proposal)
	if _, err := s.queue.Enqueue(jobs.Job{ID: proposal.ID, Type: "plan", Payload: req}); err != nil {
		s.store.Delete(proposal.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue plan")
	}
	s.metrics.SetActiveProposals(s.store.Len())
	return proposal.response(), nil
}

// Proposal reports the state of a synchronous or queued run.
func (s *PlannerService) Proposal(ctx context.Context, id string) (*dto.ProposalResponse, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return proposal.response(), nil
}

// Schedules returns the ranked schedules of a finished proposal.
func (s *PlannerService) Schedules(ctx context.Context, id string) ([]dto.ScheduleView, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.Status != dto.ProposalDone || proposal.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal is not finished")
	}
	return proposal.Result.Schedules, nil
}

// Save persists a finished proposal as a versioned plan run with one entry per
// scheduled slot of every ranked schedule.
func (s *PlannerService) Save(ctx context.Context, req dto.SavePlanRequest, requestedBy string) (*models.PlanRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save plan payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.Status != dto.ProposalDone || proposal.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal is not finished")
	}
	if len(proposal.Result.Schedules) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal has no schedules to save")
	}
	if s.tx == nil || s.runs == nil || s.entries == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "plan run storage unavailable")
	}

	best := proposal.Result.Schedules[0]
	metaBytes, marshalErr := json.Marshal(map[string]any{
		"proposalId": proposal.ID,
		"bestKey":    best.Key,
		"bestCost":   best.Cost.Total,
		"bestEcts":   best.ECTS,
		"schedules":  len(proposal.Result.Schedules),
		"truncated":  proposal.Result.Truncated,
		"cancelled":  proposal.Result.Cancelled,
		"stats":      proposal.Result.Stats,
		"generated":  proposal.RequestedAt,
	})
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode plan run metadata")
	}

	started := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	run := &models.PlanRun{
		Label:       req.Label,
		RequestedBy: requestedBy,
		Status:      models.PlanRunStatusDraft,
		Meta:        types.JSONText(metaBytes),
	}
	if err = s.runs.CreateVersioned(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan run")
		return nil, err
	}
	if err = s.entries.InsertBatch(ctx, tx, planRunEntries(run.ID, proposal.Result.Schedules)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist plan run entries")
		return nil, err
	}
	if req.Publish {
		if err = s.runs.UpdateStatus(ctx, tx, run.ID, models.PlanRunStatusPublished, nil); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish plan run")
			return nil, err
		}
		run.Status = models.PlanRunStatusPublished
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan run transaction")
		return nil, err
	}
	s.metrics.ObserveDBQuery("plan_run_save", time.Since(started))

	s.store.Delete(req.ProposalID)
	s.metrics.SetActiveProposals(s.store.Len())
	s.logger.Info("plan run saved",
		zap.String("run_id", run.ID),
		zap.String("label", run.Label),
		zap.Int("version", run.Version),
		zap.String("status", string(run.Status)),
	)
	return run, nil
}

// List returns saved plan runs, newest first.
func (s *PlannerService) List(ctx context.Context, query dto.PlanRunQuery) ([]models.PlanRun, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan run query")
	}
	if s.runs == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrInternal, "plan run storage unavailable")
	}
	filter := models.PlanRunFilter{
		Label:    query.Label,
		Status:   models.PlanRunStatus(query.Status),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	started := time.Now()
	runs, total, err := s.runs.List(ctx, filter)
	s.metrics.ObserveDBQuery("plan_run_list", time.Since(started))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan runs")
	}
	return runs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalRows: total}, nil
}

// Entries returns the stored slots of a plan run.
func (s *PlannerService) Entries(ctx context.Context, runID string) ([]models.PlanRunEntry, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan run id is required")
	}
	if s.runs == nil || s.entries == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "plan run storage unavailable")
	}
	if _, err := s.runs.FindByID(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan run")
	}
	entries, err := s.entries.ListByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plan run entries")
	}
	return entries, nil
}

// Delete removes a draft plan run.
func (s *PlannerService) Delete(ctx context.Context, runID string) error {
	if s.runs == nil {
		return appErrors.Clone(appErrors.ErrInternal, "plan run storage unavailable")
	}
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "plan run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan run")
	}
	if run.Status != models.PlanRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft plan runs can be deleted")
	}
	if err := s.runs.Delete(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "plan run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan run")
	}
	return nil
}

func (s *PlannerService) execute(ctx context.Context, req dto.PlanRequest, mode string) (*dto.PlanResponse, error) {
	in, err := EngineInput(s.cfg.Engine, req)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(req)
	if s.cache != nil {
		var cached dto.PlanResponse
		if s.cache.Get(ctx, key, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	start := time.Now()
	var res *scheduler.Result
	seeds := PlanSeedList(s.cfg.Engine, req.Seeds)
	switch len(seeds) {
	case 0:
		res, err = scheduler.Plan(ctx, in)
	case 1:
		in.Seed = seeds[0]
		res, err = scheduler.Plan(ctx, in)
	default:
		res, err = scheduler.PlanSeeds(ctx, in, seeds, s.cfg.Engine.Workers)
	}
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObservePlanRun(mode, planOutcome(nil, err), elapsed, 0, 0)
		fields := []zap.Field{zap.String("mode", mode), zap.Duration("took", elapsed), zap.Error(err)}
		if c, ok := scheduler.TightestConstraint(err); ok {
			fields = append(fields, zap.String("constraint", string(c.Kind)), zap.Float64("excess", c.Excess))
		}
		s.logger.Info("plan found no schedule", fields...)
		return nil, err
	}

	view := PlanView(res)
	s.metrics.ObservePlanRun(mode, planOutcome(res, nil), elapsed, res.Stats.Nodes, res.Stats.AnnealIterations)
	s.logger.Info("plan finished",
		zap.String("mode", mode),
		zap.Int("schedules", len(view.Schedules)),
		zap.Strings("strategies", res.Stats.Strategies),
		zap.Int("nodes", res.Stats.Nodes),
		zap.Bool("truncated", res.Truncated),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("took", elapsed),
	)
	if !res.Cancelled && s.cache != nil {
		s.cache.Set(ctx, key, view, s.cfg.CacheTTL)
	}
	return &view, nil
}

// cacheKey fingerprints the request together with the engine defaults it was run under.
func (s *PlannerService) cacheKey(req dto.PlanRequest) string {
	payload, err := json.Marshal(struct {
		Request dto.PlanRequest      `json:"request"`
		Engine  config.PlannerConfig `json:"engine"`
	}{req, s.cfg.Engine})
	if err != nil {
		return "plans:" + uuid.NewString()
	}
	sum := sha256.Sum256(payload)
	return "plans:" + hex.EncodeToString(sum[:])
}

func planOutcome(res *scheduler.Result, err error) string {
	switch {
	case err != nil:
		if errors.Is(err, appErrors.ErrNoFeasibleSchedule) || errors.Is(err, appErrors.ErrInfeasibleSelection) {
			return PlanOutcomeInfeasible
		}
		return PlanOutcomeError
	case res.Cancelled:
		return PlanOutcomeCancelled
	case res.Truncated:
		return PlanOutcomeTruncated
	}
	return PlanOutcomeOK
}

// IsRetryable reports whether a failed planning job is worth another attempt. Domain
// and validation failures are deterministic and never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return appErrors.FromError(err).Status >= 500
}

func planRunEntries(runID string, schedules []dto.ScheduleView) []models.PlanRunEntry {
	var entries []models.PlanRunEntry
	for _, schedule := range schedules {
		for _, section := range schedule.Sections {
			for _, slot := range section.Slots {
				entries = append(entries, models.PlanRunEntry{
					PlanRunID:  runID,
					Rank:       schedule.Rank,
					CourseCode: section.Code,
					SectionID:  section.ID,
					Kind:       section.Kind,
					ECTS:       section.ECTS,
					DayOfWeek:  slot.Day,
					Period:     slot.Period,
				})
			}
		}
	}
	return entries
}

// --- Worker ---

// PlanWorker bridges queued jobs to the planner.
type PlanWorker struct {
	svc        *PlannerService
	logger     *zap.Logger
	maxRetries int
}

// NewPlanWorker constructs a worker. maxRetries must match the queue configuration.
func NewPlanWorker(svc *PlannerService, maxRetries int, logger *zap.Logger) *PlanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &PlanWorker{svc: svc, logger: logger, maxRetries: maxRetries}
}

// Handle processes a queue job.
func (w *PlanWorker) Handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.PlanRequest)
	if !ok {
		err := appErrors.Clone(appErrors.ErrValidation, "unexpected plan job payload")
		w.svc.store.Update(job.ID, func(p *planProposal) { p.fail(err) })
		return err
	}
	if !w.svc.store.Update(job.ID, func(p *planProposal) { p.Status = dto.ProposalRunning }) {
		w.logger.Warn("plan job proposal expired", zap.String("job_id", job.ID))
		return nil
	}

	resp, err := w.svc.execute(ctx, req, "async")
	if err != nil {
		final := !IsRetryable(err) || job.Attempt >= w.maxRetries
		w.svc.store.Update(job.ID, func(p *planProposal) {
			if final {
				p.fail(err)
				return
			}
			p.Status = dto.ProposalPending
		})
		return err
	}

	resp.ProposalID = job.ID
	w.svc.store.Update(job.ID, func(p *planProposal) {
		now := time.Now().UTC()
		p.Status = dto.ProposalDone
		p.FinishedAt = &now
		p.Result = resp
	})
	return nil
}

// --- Proposal store ---

type planProposal struct {
	ID          string
	Status      string
	RequestedBy string
	RequestedAt time.Time
	FinishedAt  *time.Time
	Request     dto.PlanRequest
	Result      *dto.PlanResponse
	Err         *appErrors.Error
}

func (p *planProposal) fail(err error) {
	now := time.Now().UTC()
	p.Status = dto.ProposalFailed
	p.FinishedAt = &now
	p.Err = appErrors.FromError(err)
}

func (p planProposal) response() *dto.ProposalResponse {
	resp := &dto.ProposalResponse{
		ProposalID:  p.ID,
		Status:      p.Status,
		RequestedAt: p.RequestedAt,
		FinishedAt:  p.FinishedAt,
		Result:      p.Result,
	}
	if p.Err != nil {
		resp.ErrorCode = p.Err.Code
		resp.Error = p.Err.Message
	}
	return resp
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]planProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]planProposal),
	}
}

// Save stores a proposal and drops expired ones.
func (s *proposalStore) Save(proposal planProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.items {
		if s.expired(existing) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (planProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return planProposal{}, false
	}
	if s.expired(proposal) {
		s.Delete(id)
		return planProposal{}, false
	}
	return proposal, true
}

// Update applies fn to a live proposal and reports whether it existed.
func (s *proposalStore) Update(id string, fn func(*planProposal)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || s.expired(proposal) {
		delete(s.items, id)
		return false
	}
	fn(&proposal)
	s.items[id] = proposal
	return true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *proposalStore) expired(p planProposal) bool {
	return time.Since(p.RequestedAt) > s.ttl
}
