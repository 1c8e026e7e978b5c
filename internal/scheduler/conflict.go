package scheduler

import (
	"fmt"
	"sort"
)

// Conflict describes the overlap between two sections of a schedule.
type Conflict struct {
	A        Section    `json:"a"`
	B        Section    `json:"b"`
	Slots    []TimeSlot `json:"slots"`
	Severity int        `json:"severity"`
	Minutes  int        `json:"minutes"`
}

// Pair returns the section IDs of the conflict in catalog order.
func (c Conflict) Pair() string {
	return c.A.ID() + "|" + c.B.ID()
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s and %s overlap %d period(s)", c.A.ID(), c.B.ID(), c.Severity)
}

// DetectConflict reports whether two sections overlap under the policy. Slots share a
// period when they fall on the same day and their periods are at most BufferPeriods
// apart; the severity counts every such slot pair.
func DetectConflict(a, b Section, policy OverlapPolicy) (Conflict, bool) {
	if a.ID() == b.ID() {
		return Conflict{}, false
	}
	policy = policy.normalized()
	if b.ID() < a.ID() {
		a, b = b, a
	}

	severity := 0
	touched := make(map[TimeSlot]struct{})
	for _, sa := range a.Slots {
		for _, sb := range b.Slots {
			if sa.Day != sb.Day {
				continue
			}
			gap := sa.Period - sb.Period
			if gap < 0 {
				gap = -gap
			}
			if gap > policy.BufferPeriods {
				continue
			}
			severity++
			touched[sa] = struct{}{}
		}
	}
	if severity == 0 {
		return Conflict{}, false
	}

	slots := make([]TimeSlot, 0, len(touched))
	for slot := range touched {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })

	return Conflict{
		A:        a,
		B:        b,
		Slots:    slots,
		Severity: severity,
		Minutes:  severity * policy.PeriodMinutes,
	}, true
}

// Conflicts lists every pairwise conflict among the sections, ordered by pair.
func Conflicts(sections []Section, policy OverlapPolicy) []Conflict {
	var out []Conflict
	for i := 0; i < len(sections); i++ {
		for j := i + 1; j < len(sections); j++ {
			if c, ok := DetectConflict(sections[i], sections[j], policy); ok {
				out = append(out, c)
			}
		}
	}
	sortConflicts(out)
	return out
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Pair() < conflicts[j].Pair() })
}

// Violation measures how far a set of conflicts lies outside an overlap policy.
type Violation struct {
	// PairExcess sums the periods by which each pair exceeds MaxPairOverlap.
	PairExcess int `json:"pairExcess"`
	// PairCountExcess is the number of conflicting pairs above MaxConflictingPairs.
	PairCountExcess int `json:"pairCountExcess"`
	// Worst is the pair with the largest excess, if any pair exceeds the bound.
	Worst *Conflict `json:"worst,omitempty"`
}

// Feasible reports whether the conflicts satisfy the policy.
func (v Violation) Feasible() bool {
	return v.PairExcess == 0 && v.PairCountExcess == 0
}

// Total is the combined excess used to compare infeasible schedules.
func (v Violation) Total() int {
	return v.PairExcess + v.PairCountExcess
}

// Evaluate measures conflicts against the policy.
func (p OverlapPolicy) Evaluate(conflicts []Conflict) Violation {
	p = p.normalized()
	var v Violation
	worstExcess := 0
	for i := range conflicts {
		excess := conflicts[i].Severity - p.MaxPairOverlap
		if excess <= 0 {
			continue
		}
		v.PairExcess += excess
		if excess > worstExcess {
			worstExcess = excess
			c := conflicts[i]
			v.Worst = &c
		}
	}
	if extra := len(conflicts) - p.MaxConflictingPairs; extra > 0 {
		v.PairCountExcess = extra
	}
	return v
}
