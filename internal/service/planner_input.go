package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/scheduler"
	"github.com/noah-isme/sma-adp-planner/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

// EngineInput turns a validated request into engine input, filling unset fields from
// the configured planner defaults.
func EngineInput(cfg config.PlannerConfig, req dto.PlanRequest) (scheduler.Input, error) {
	sections := make([]scheduler.Section, 0, len(req.Sections))
	seen := make(map[string]struct{}, len(req.Sections))
	for _, sec := range req.Sections {
		section := scheduler.Section{
			Code:        strings.TrimSpace(sec.Code),
			Suffix:      strings.TrimSpace(sec.Suffix),
			Kind:        scheduler.SectionKind(sec.Kind),
			ECTS:        sec.ECTS,
			Instructors: lo.Uniq(lo.Map(sec.Instructors, func(name string, _ int) string { return strings.TrimSpace(name) })),
			Slots: lo.Map(sec.Slots, func(slot dto.SlotRequest, _ int) scheduler.TimeSlot {
				return scheduler.TimeSlot{Day: slot.Day, Period: slot.Period}
			}),
		}
		if section.Kind == "" {
			section.Kind = scheduler.KindLecture
		}
		if _, dup := seen[section.ID()]; dup {
			return scheduler.Input{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate section %s", section.ID()))
		}
		seen[section.ID()] = struct{}{}
		sections = append(sections, section)
	}

	selection := make(map[string]scheduler.Selection, len(req.Selection))
	for code, sel := range req.Selection {
		selection[strings.TrimSpace(code)] = scheduler.Selection(sel)
	}
	prefs := scheduler.Preferences{
		Frequencies: make(map[string]scheduler.Frequency, len(req.Frequencies)),
		Instructors: req.Instructors,
	}
	for key, freq := range req.Frequencies {
		prefs.Frequencies[strings.TrimSpace(key)] = scheduler.Frequency(freq)
	}

	in := scheduler.Input{
		Catalog:     scheduler.NewCatalog(sections),
		Selection:   selection,
		Preferences: prefs,
		Policy:      DefaultPolicy(cfg),
		ECTSCeiling: cfg.ECTSCeiling,
		MaxOptional: cfg.MaxOptional,
		K:           cfg.TopK,
		Budget:      scheduler.Budget{MaxNodes: cfg.MaxNodes, TimeLimit: cfg.TimeLimit},
		Weights: scheduler.Weights{
			Conflict:   cfg.ConflictWeight,
			ECTS:       cfg.ECTSWeight,
			Frequency:  cfg.FrequencyWeight,
			Instructor: cfg.InstructorWeight,
		},
		Annealing: scheduler.AnnealConfig{
			InitialTempFactor: cfg.AnnealTempFactor,
			CoolingRate:       cfg.AnnealCooling,
			MinTemperature:    cfg.AnnealMinTemp,
			MaxIterations:     cfg.AnnealIterations,
			InfeasiblePenalty: cfg.InfeasiblePenalty,
		},
		RepairSwaps:      cfg.RepairSwaps,
		DisableAnnealing: req.DisableAnnealing,
	}

	if p := req.Policy; p != nil {
		in.Policy.MaxPairOverlap = lo.FromPtrOr(p.MaxPairOverlap, in.Policy.MaxPairOverlap)
		in.Policy.MaxConflictingPairs = lo.FromPtrOr(p.MaxConflictingPairs, in.Policy.MaxConflictingPairs)
		in.Policy.BufferPeriods = lo.FromPtrOr(p.BufferPeriods, in.Policy.BufferPeriods)
		in.Policy.PeriodMinutes = lo.FromPtrOr(p.PeriodMinutes, in.Policy.PeriodMinutes)
	}
	if w := req.Weights; w != nil {
		in.Weights.Conflict = lo.FromPtrOr(w.Conflict, in.Weights.Conflict)
		in.Weights.ECTS = lo.FromPtrOr(w.ECTS, in.Weights.ECTS)
		in.Weights.Frequency = lo.FromPtrOr(w.Frequency, in.Weights.Frequency)
		in.Weights.Instructor = lo.FromPtrOr(w.Instructor, in.Weights.Instructor)
	}
	in.ECTSCeiling = lo.FromPtrOr(req.ECTSCeiling, in.ECTSCeiling)
	in.ECTSTarget = lo.FromPtrOr(req.ECTSTarget, in.ECTSTarget)
	in.MaxOptional = lo.FromPtrOr(req.MaxOptional, in.MaxOptional)
	in.K = lo.FromPtrOr(req.TopK, in.K)
	in.Budget.MaxNodes = lo.FromPtrOr(req.MaxNodes, in.Budget.MaxNodes)
	in.TargetScore = lo.FromPtrOr(req.TargetScore, 0)
	if req.TimeLimitMs != nil {
		in.Budget.TimeLimit = time.Duration(*req.TimeLimitMs) * time.Millisecond
	}
	return in, nil
}

// DefaultPolicy reads the overlap policy from the planner configuration.
func DefaultPolicy(cfg config.PlannerConfig) scheduler.OverlapPolicy {
	return scheduler.OverlapPolicy{
		MaxPairOverlap:      cfg.MaxPairOverlap,
		MaxConflictingPairs: cfg.MaxConflictingPairs,
		BufferPeriods:       cfg.BufferPeriods,
		PeriodMinutes:       cfg.PeriodMinutes,
	}
}

// PlanSeedList returns the annealing seeds for a run. An empty request list expands to
// 1..n when the configuration asks for n > 1 parallel seeds.
func PlanSeedList(cfg config.PlannerConfig, requested []int64) []int64 {
	if len(requested) > 0 {
		return lo.Uniq(requested)
	}
	if cfg.Seeds <= 1 {
		return nil
	}
	seeds := make([]int64, cfg.Seeds)
	for i := range seeds {
		seeds[i] = int64(i + 1)
	}
	return seeds
}

// --- Views ---

// PlanView renders an engine result for API and CLI consumers.
func PlanView(res *scheduler.Result) dto.PlanResponse {
	resp := dto.PlanResponse{
		Schedules: make([]dto.ScheduleView, 0, len(res.Schedules)),
		Truncated: res.Truncated,
		Cancelled: res.Cancelled,
		Stats: dto.PlanStatsView{
			Strategies:       res.Stats.Strategies,
			Candidates:       res.Stats.Candidates,
			Nodes:            res.Stats.Nodes,
			Terminals:        res.Stats.Terminals,
			AnnealIterations: res.Stats.AnnealIterations,
			AnnealAccepted:   res.Stats.AnnealAccepted,
			Repaired:         res.Stats.Repaired,
			Exhaustive:       res.Stats.Exhaustive,
			ElapsedMs:        res.Stats.Elapsed.Milliseconds(),
		},
	}
	for i, s := range res.Schedules {
		resp.Schedules = append(resp.Schedules, scheduleView(i+1, s))
	}
	return resp
}

func scheduleView(rank int, s *scheduler.Schedule) dto.ScheduleView {
	cost := s.Breakdown()
	view := dto.ScheduleView{
		Rank:     rank,
		Key:      s.Key(),
		ECTS:     s.ECTS(),
		Severity: s.Severity(),
		Feasible: s.Feasible(),
		Cost: dto.CostView{
			Conflict:      cost.Conflict,
			ECTSDeviation: cost.ECTSDeviation,
			Frequency:     cost.Frequency,
			Instructor:    cost.Instructor,
			Total:         cost.Total,
		},
	}
	for _, e := range s.Entries() {
		view.Sections = append(view.Sections, dto.SectionView{
			ID:          e.Section.ID(),
			Code:        e.Section.Code,
			Kind:        string(e.Section.Kind),
			ECTS:        e.Section.ECTS,
			Selection:   string(e.Selection),
			Instructors: e.Section.Instructors,
			Slots:       slotViews(e.Section.Slots),
		})
	}
	view.Conflicts = make([]dto.ConflictView, 0, len(s.Conflicts()))
	for _, c := range s.Conflicts() {
		view.Conflicts = append(view.Conflicts, dto.ConflictView{
			A:        c.A.ID(),
			B:        c.B.ID(),
			Slots:    slotViews(c.Slots),
			Severity: c.Severity,
			Minutes:  c.Minutes,
		})
	}
	return view
}

func slotViews(slots []scheduler.TimeSlot) []dto.SlotView {
	return lo.Map(slots, func(slot scheduler.TimeSlot, _ int) dto.SlotView {
		return dto.SlotView{Day: slot.Day, DayName: scheduler.DayName(slot.Day), Period: slot.Period}
	})
}
