package scheduler

import "math"

const costEpsilon = 1e-9

// Weights scale the components of the schedule cost.
type Weights struct {
	Conflict   float64 `json:"conflict"`
	ECTS       float64 `json:"ects"`
	Frequency  float64 `json:"frequency"`
	Instructor float64 `json:"instructor"`
}

// DefaultWeights makes a single overlapping period outweigh every soft preference.
func DefaultWeights() Weights {
	return Weights{Conflict: 10, ECTS: 1, Frequency: 2, Instructor: 1}
}

// CostBreakdown lists the weighted cost components of a schedule.
type CostBreakdown struct {
	Conflict      float64 `json:"conflict"`
	ECTSDeviation float64 `json:"ectsDeviation"`
	Frequency     float64 `json:"frequency"`
	Instructor    float64 `json:"instructor"`
	Total         float64 `json:"total"`
}

// Scorer assigns a cost to schedules; lower is better.
type Scorer struct {
	weights Weights
	target  float64
	prefs   Preferences
}

// NewScorer builds a scorer. Negative weights are clamped to zero so that more
// conflicts can never lower the cost.
func NewScorer(weights Weights, ectsTarget float64, prefs Preferences) *Scorer {
	weights.Conflict = math.Max(0, weights.Conflict)
	weights.ECTS = math.Max(0, weights.ECTS)
	weights.Frequency = math.Max(0, weights.Frequency)
	weights.Instructor = math.Max(0, weights.Instructor)
	return &Scorer{weights: weights, target: math.Max(0, ectsTarget), prefs: prefs}
}

// Weights returns the effective weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Target returns the ECTS target, zero when deviation is not scored.
func (s *Scorer) Target() float64 {
	return s.target
}

// Score computes the cost of a set of entries with the given total severity and ECTS.
func (s *Scorer) Score(entries []Entry, severity int, ects float64) CostBreakdown {
	var out CostBreakdown
	out.Conflict = s.weights.Conflict * float64(severity)
	if s.target > 0 {
		out.ECTSDeviation = s.weights.ECTS * math.Abs(ects-s.target)
	}
	for _, e := range entries {
		out.Frequency += s.frequencyPenalty(e)
		out.Instructor += s.instructorPenalty(e)
	}
	out.Total = out.Conflict + out.ECTSDeviation + out.Frequency + out.Instructor
	return out
}

// lowerBound is the part of the cost that can only grow as sections are added.
func (s *Scorer) lowerBound(entries []Entry, severity int) float64 {
	bound := s.weights.Conflict * float64(severity)
	for _, e := range entries {
		bound += s.frequencyPenalty(e) + s.instructorPenalty(e)
	}
	return bound
}

func (s *Scorer) frequencyPenalty(e Entry) float64 {
	if e.Selection != SelectionOptional {
		return 0
	}
	miss := MaxFrequencyWeight - s.prefs.SectionFrequency(e.Section).Weight()
	return s.weights.Frequency * float64(miss)
}

func (s *Scorer) instructorPenalty(e Entry) float64 {
	if len(s.prefs.Instructors) == 0 {
		return 0
	}
	total := 0.0
	for _, name := range e.Section.Instructors {
		total += math.Max(0, s.prefs.Instructors[name])
	}
	return s.weights.Instructor * total
}

// compareSchedules orders by cost, then by the section key.
func compareSchedules(a, b *Schedule) int {
	if d := a.cost.Total - b.cost.Total; d < -costEpsilon {
		return -1
	} else if d > costEpsilon {
		return 1
	}
	switch {
	case a.key < b.key:
		return -1
	case a.key > b.key:
		return 1
	}
	return 0
}

// Better reports whether a ranks ahead of b.
func Better(a, b *Schedule) bool {
	return compareSchedules(a, b) < 0
}
