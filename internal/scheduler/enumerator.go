package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultMaxNodes = 200000
	deadlineMask    = 1023
)

// Budget bounds a search. A zero TimeLimit disables the wall-clock bound.
type Budget struct {
	MaxNodes  int           `json:"maxNodes"`
	TimeLimit time.Duration `json:"timeLimit"`
}

// DefaultBudget returns the node cap and a two second wall-clock limit.
func DefaultBudget() Budget {
	return Budget{MaxNodes: DefaultMaxNodes, TimeLimit: 2 * time.Second}
}

// Problem is the shared, read-only description of a planning run.
type Problem struct {
	Points      []DecisionPoint
	Policy      OverlapPolicy
	ECTSCeiling float64
	MaxOptional int
	K           int
	Scorer      *Scorer
}

func (p *Problem) optionalFits(current, add float64) bool {
	return p.ECTSCeiling <= 0 || current+add <= p.ECTSCeiling+costEpsilon
}

// EnumerationResult is the outcome of a depth-first search.
type EnumerationResult struct {
	Schedules []*Schedule
	Nodes     int
	Terminals int
	Truncated bool
	Cancelled bool
	Tightest  *Constraint
}

// Exhaustive reports whether the whole search space was visited.
func (r EnumerationResult) Exhaustive() bool {
	return !r.Truncated && !r.Cancelled
}

// Enumerator is a budgeted depth-first branch-and-bound search.
type Enumerator struct {
	budget Budget
	now    func() time.Time
}

// NewEnumerator builds an enumerator with the given budget.
func NewEnumerator(budget Budget) *Enumerator {
	if budget.MaxNodes <= 0 {
		budget.MaxNodes = DefaultMaxNodes
	}
	return &Enumerator{budget: budget, now: time.Now}
}

// Run searches the problem and returns the best schedules found within budget.
func (e *Enumerator) Run(ctx context.Context, p *Problem) EnumerationResult {
	state := &dfsState{
		ctx:     ctx,
		problem: p,
		policy:  p.Policy.normalized(),
		budget:  e.budget,
		now:     e.now,
		best:    newBestK(p.K),
		skipped: make([]bool, len(p.Points)),
	}
	if e.budget.TimeLimit > 0 {
		state.deadline = e.now().Add(e.budget.TimeLimit)
	}
	state.visit(0)

	return EnumerationResult{
		Schedules: state.best.Items(),
		Nodes:     state.nodes,
		Terminals: state.terminals,
		Truncated: state.truncated,
		Cancelled: state.cancelled,
		Tightest:  state.tracker.get(),
	}
}

type candidate struct {
	section  Section
	added    []Conflict
	severity int
}

type dfsState struct {
	ctx      context.Context
	problem  *Problem
	policy   OverlapPolicy
	budget   Budget
	now      func() time.Time
	deadline time.Time

	best      *bestK
	entries   []Entry
	conflicts []Conflict
	skipped   []bool
	ects      float64
	severity  int
	optional  int

	nodes     int
	terminals int
	truncated bool
	cancelled bool
	tracker   constraintTracker
}

// visit explores decision point depth and reports whether the search should continue.
func (s *dfsState) visit(depth int) bool {
	if s.ctx.Err() != nil {
		s.cancelled = true
		return false
	}
	s.nodes++
	if s.nodes > s.budget.MaxNodes {
		s.truncated = true
		return false
	}
	if !s.deadline.IsZero() && s.nodes&deadlineMask == 0 && s.now().After(s.deadline) {
		s.truncated = true
		return false
	}

	points := s.problem.Points
	if depth == len(points) {
		s.terminal()
		return true
	}

	point := points[depth]
	for _, cand := range s.candidates(point) {
		if !s.admissible(point, cand) {
			continue
		}
		s.push(point, cand)
		cont := s.visit(depth + 1)
		s.pop(point, cand)
		if !cont {
			return false
		}
	}
	if !point.Mandatory() {
		s.skipped[depth] = true
		cont := s.visit(depth + 1)
		s.skipped[depth] = false
		if !cont {
			return false
		}
	}
	return true
}

// candidates orders a group's sections by the severity they add to the committed ones.
func (s *dfsState) candidates(point DecisionPoint) []candidate {
	out := make([]candidate, 0, len(point.Group.Sections))
	for _, sec := range point.Group.Sections {
		cand := candidate{section: sec}
		for _, e := range s.entries {
			if c, ok := DetectConflict(e.Section, sec, s.policy); ok {
				cand.added = append(cand.added, c)
				cand.severity += c.Severity
			}
		}
		out = append(out, cand)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].severity < out[j].severity })
	return out
}

func (s *dfsState) admissible(point DecisionPoint, cand candidate) bool {
	for _, c := range cand.added {
		if excess := c.Severity - s.policy.MaxPairOverlap; excess > 0 {
			conflict := c
			s.tracker.offer(ConstraintPairOverlap, float64(excess), func() string {
				return fmt.Sprintf("%s exceeds the per-pair limit of %d", conflict, s.policy.MaxPairOverlap)
			})
			return false
		}
	}
	if pairs := len(s.conflicts) + len(cand.added); pairs > s.policy.MaxConflictingPairs {
		s.tracker.offer(ConstraintConflictingPairs, float64(pairs-s.policy.MaxConflictingPairs), func() string {
			return fmt.Sprintf("%d overlapping pairs exceed the limit of %d", pairs, s.policy.MaxConflictingPairs)
		})
		return false
	}
	if !point.Mandatory() {
		if s.problem.MaxOptional > 0 && s.optional >= s.problem.MaxOptional {
			return false
		}
		if !s.problem.optionalFits(s.ects, cand.section.ECTS) {
			total := s.ects + cand.section.ECTS
			s.tracker.offer(ConstraintECTSCeiling, total-s.problem.ECTSCeiling, func() string {
				return fmt.Sprintf("adding %s brings %.1f ECTS above the ceiling of %.1f", cand.section.ID(), total, s.problem.ECTSCeiling)
			})
			return false
		}
	}
	if s.best.Full() {
		bound := s.problem.Scorer.lowerBound(s.entries, s.severity+cand.severity) +
			s.problem.Scorer.lowerBound([]Entry{{Section: cand.section, Selection: point.Selection}}, 0)
		if bound > s.best.Worst().cost.Total+costEpsilon {
			return false
		}
	}
	return true
}

func (s *dfsState) push(point DecisionPoint, cand candidate) {
	s.entries = append(s.entries, Entry{Section: cand.section, Selection: point.Selection})
	s.conflicts = append(s.conflicts, cand.added...)
	s.ects += cand.section.ECTS
	s.severity += cand.severity
	if !point.Mandatory() {
		s.optional++
	}
}

func (s *dfsState) pop(point DecisionPoint, cand candidate) {
	s.entries = s.entries[:len(s.entries)-1]
	s.conflicts = s.conflicts[:len(s.conflicts)-len(cand.added)]
	s.ects -= cand.section.ECTS
	s.severity -= cand.severity
	if !point.Mandatory() {
		s.optional--
	}
}

// terminal scores a complete assignment. Assignments that leave out an optional group
// which could still be added are not terminals; NEVER groups are never forced in.
func (s *dfsState) terminal() {
	if len(s.entries) == 0 {
		return
	}
	for idx, skipped := range s.skipped {
		if skipped && s.couldAdd(s.problem.Points[idx]) {
			return
		}
	}
	s.terminals++

	entries := append([]Entry(nil), s.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Section.Code < entries[j].Section.Code })
	conflicts := append([]Conflict(nil), s.conflicts...)
	sortConflicts(conflicts)
	s.best.Offer(assembleSchedule(entries, conflicts, s.policy, s.problem.Scorer))
}

func (s *dfsState) couldAdd(point DecisionPoint) bool {
	if point.Frequency == FrequencyNever {
		return false
	}
	if s.problem.MaxOptional > 0 && s.optional >= s.problem.MaxOptional {
		return false
	}
	for _, sec := range point.Group.Sections {
		if !s.problem.optionalFits(s.ects, sec.ECTS) {
			continue
		}
		pairs := len(s.conflicts)
		ok := true
		for _, e := range s.entries {
			c, hit := DetectConflict(e.Section, sec, s.policy)
			if !hit {
				continue
			}
			pairs++
			if c.Severity > s.policy.MaxPairOverlap || pairs > s.policy.MaxConflictingPairs {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
