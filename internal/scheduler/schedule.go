package scheduler

import (
	"sort"
	"strings"
)

// Entry is a chosen section together with the selection state of its group.
type Entry struct {
	Section   Section   `json:"section"`
	Selection Selection `json:"selection"`
}

// Schedule is an immutable set of chosen sections plus derived aggregates.
type Schedule struct {
	entries   []Entry
	conflicts []Conflict
	ects      float64
	severity  int
	violation Violation
	cost      CostBreakdown
	key       string
	footprint string
}

// buildSchedule derives conflicts and cost for the given entries.
func buildSchedule(entries []Entry, policy OverlapPolicy, scorer *Scorer) *Schedule {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Section.Code < sorted[j].Section.Code })
	sections := make([]Section, len(sorted))
	for i, e := range sorted {
		sections[i] = e.Section
	}
	return assembleSchedule(sorted, Conflicts(sections, policy), policy, scorer)
}

// assembleSchedule takes ownership of already-sorted entries and computed conflicts.
func assembleSchedule(entries []Entry, conflicts []Conflict, policy OverlapPolicy, scorer *Scorer) *Schedule {
	s := &Schedule{entries: entries, conflicts: conflicts}
	ids := make([]string, len(entries))
	prints := make([]string, len(entries))
	for i, e := range entries {
		s.ects += e.Section.ECTS
		ids[i] = e.Section.ID()
		prints[i] = e.Section.footprint()
	}
	for _, c := range conflicts {
		s.severity += c.Severity
	}
	s.violation = policy.Evaluate(conflicts)
	s.cost = scorer.Score(entries, s.severity, s.ects)
	s.key = strings.Join(ids, ",")
	s.footprint = strings.Join(prints, ",")
	return s
}

// Entries returns the chosen sections ordered by group code.
func (s *Schedule) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Sections returns the chosen sections ordered by group code.
func (s *Schedule) Sections() []Section {
	out := make([]Section, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Section
	}
	return out
}

// Section returns the section chosen for a group code.
func (s *Schedule) Section(code string) (Section, bool) {
	for _, e := range s.entries {
		if e.Section.Code == code {
			return e.Section, true
		}
	}
	return Section{}, false
}

// Len returns the number of chosen sections.
func (s *Schedule) Len() int { return len(s.entries) }

// Conflicts returns the overlapping pairs of the schedule.
func (s *Schedule) Conflicts() []Conflict {
	return append([]Conflict(nil), s.conflicts...)
}

// ECTS returns the total credit load.
func (s *Schedule) ECTS() float64 { return s.ects }

// Severity returns the summed conflict severity in periods.
func (s *Schedule) Severity() int { return s.severity }

// Violation reports how far the schedule lies outside the overlap policy it was built with.
func (s *Schedule) Violation() Violation { return s.violation }

// Feasible reports whether the schedule satisfies its overlap policy.
func (s *Schedule) Feasible() bool { return s.violation.Feasible() }

// Cost returns the scorer's total.
func (s *Schedule) Cost() float64 { return s.cost.Total }

// Breakdown returns the weighted cost components.
func (s *Schedule) Breakdown() CostBreakdown { return s.cost }

// Key joins the chosen section IDs in group-code order.
func (s *Schedule) Key() string { return s.key }

// Footprint identifies the timetable shape; schedules whose chosen sections differ only in
// suffix but occupy identical slots share a footprint.
func (s *Schedule) Footprint() string { return s.footprint }
