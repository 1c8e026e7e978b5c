package scheduler

import "sort"

// DefaultRepairSwaps is the default number of local swaps a repair may attempt.
const DefaultRepairSwaps = 3

// RepairResult is the best schedule a repair pass reached.
type RepairResult struct {
	Schedule *Schedule
	Feasible bool
	Swaps    int
}

// Repair greedily swaps sections to pull a schedule back under the overlap policy. Each
// swap replaces the section of one group in a conflicting pair, preferring the group
// with the lower frequency, and must lower the violation without raising the severity
// or the cost. Groups are never removed and the ECTS ceiling is never crossed.
func Repair(s *Schedule, p *Problem, maxSwaps int) RepairResult {
	if maxSwaps <= 0 {
		maxSwaps = DefaultRepairSwaps
	}
	policy := p.Policy.normalized()
	index := pointIndex(p.Points)
	current := buildSchedule(s.entries, policy, p.Scorer)

	swaps := 0
	for swaps < maxSwaps && !current.Feasible() {
		next, ok := repairStep(current, p, policy, index)
		if !ok {
			break
		}
		current = next
		swaps++
	}
	return RepairResult{Schedule: current, Feasible: current.Feasible(), Swaps: swaps}
}

func repairStep(current *Schedule, p *Problem, policy OverlapPolicy, index map[string]int) (*Schedule, bool) {
	conflicts := current.Conflicts()
	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Severity > conflicts[j].Severity })

	for _, c := range conflicts {
		for _, code := range swapOrder(c, p, index) {
			if next, ok := bestSwap(current, p, policy, index[code], c); ok {
				return next, true
			}
		}
	}
	return nil, false
}

// swapOrder lists the two groups of a conflict, the lower-frequency group first. Ties
// prefer optional groups, then the larger code.
func swapOrder(c Conflict, p *Problem, index map[string]int) []string {
	var codes []string
	for _, code := range []string{c.A.Code, c.B.Code} {
		if _, ok := index[code]; ok {
			codes = append(codes, code)
		}
	}
	sort.SliceStable(codes, func(i, j int) bool {
		a, b := p.Points[index[codes[i]]], p.Points[index[codes[j]]]
		if a.Frequency.Weight() != b.Frequency.Weight() {
			return a.Frequency.Weight() < b.Frequency.Weight()
		}
		if a.Mandatory() != b.Mandatory() {
			return !a.Mandatory()
		}
		return a.Group.Code > b.Group.Code
	})
	return codes
}

// bestSwap tries every alternative section of the point that removes conflict c and
// keeps the best improving candidate.
func bestSwap(current *Schedule, p *Problem, policy OverlapPolicy, pointIdx int, c Conflict) (*Schedule, bool) {
	point := p.Points[pointIdx]
	chosen, ok := current.Section(point.Group.Code)
	if !ok {
		return nil, false
	}
	other := c.A
	if other.Code == point.Group.Code {
		other = c.B
	}

	var best *Schedule
	for _, alt := range point.Group.Sections {
		if alt.ID() == chosen.ID() {
			continue
		}
		if _, overlaps := DetectConflict(alt, other, policy); overlaps {
			continue
		}
		ects := current.ects - chosen.ECTS + alt.ECTS
		if p.ECTSCeiling > 0 && ects > p.ECTSCeiling+costEpsilon && ects > current.ects {
			continue
		}
		entries := current.Entries()
		for i := range entries {
			if entries[i].Section.Code == point.Group.Code {
				entries[i].Section = alt
			}
		}
		cand := buildSchedule(entries, policy, p.Scorer)
		if !improves(cand, current) {
			continue
		}
		if best == nil || repairLess(cand, best) {
			best = cand
		}
	}
	return best, best != nil
}

// improves accepts a candidate only when neither severity nor cost goes up, so a
// repaired schedule never ranks behind the one it came from.
func improves(cand, current *Schedule) bool {
	if cand.severity > current.severity || cand.cost.Total > current.cost.Total+costEpsilon {
		return false
	}
	cv, pv := cand.violation.Total(), current.violation.Total()
	return cv < pv || (cv == pv && cand.severity < current.severity)
}

func repairLess(a, b *Schedule) bool {
	if av, bv := a.violation.Total(), b.violation.Total(); av != bv {
		return av < bv
	}
	if a.severity != b.severity {
		return a.severity < b.severity
	}
	return Better(a, b)
}
