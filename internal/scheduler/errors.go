package scheduler

import (
	"errors"
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

// ConstraintKind names the bound that made a search come up empty.
type ConstraintKind string

const (
	ConstraintNoCandidates     ConstraintKind = "NO_CANDIDATES"
	ConstraintPairOverlap      ConstraintKind = "MAX_PAIR_OVERLAP"
	ConstraintConflictingPairs ConstraintKind = "MAX_CONFLICTING_PAIRS"
	ConstraintECTSCeiling      ConstraintKind = "ECTS_CEILING"
	ConstraintSearchBudget     ConstraintKind = "SEARCH_BUDGET"
)

// Constraint identifies a violated bound and by how much it was exceeded.
type Constraint struct {
	Kind   ConstraintKind `json:"kind"`
	Detail string         `json:"detail"`
	Excess float64        `json:"excess"`
}

// NoFeasibleError carries the tightest violated constraint of an empty search.
type NoFeasibleError struct {
	Constraint Constraint
	Candidates int
}

func (e *NoFeasibleError) Error() string {
	if e.Constraint.Detail == "" {
		return string(e.Constraint.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Constraint.Kind, e.Constraint.Detail)
}

// InfeasibleSelectionError lists the mandatory course codes without sections.
type InfeasibleSelectionError struct {
	Codes []string
}

func (e *InfeasibleSelectionError) Error() string {
	return "no sections for mandatory course(s) " + strings.Join(e.Codes, ", ")
}

func noFeasibleSchedule(c Constraint, candidates int) error {
	cause := &NoFeasibleError{Constraint: c, Candidates: candidates}
	return appErrors.Wrap(cause, appErrors.ErrNoFeasibleSchedule.Code, appErrors.ErrNoFeasibleSchedule.Status,
		fmt.Sprintf("%s (%s)", appErrors.ErrNoFeasibleSchedule.Message, cause.Error()))
}

func infeasibleSelection(codes []string) error {
	cause := &InfeasibleSelectionError{Codes: codes}
	return appErrors.Wrap(cause, appErrors.ErrInfeasibleSelection.Code, appErrors.ErrInfeasibleSelection.Status, cause.Error())
}

// TightestConstraint extracts the violated constraint from a NO_FEASIBLE_SCHEDULE error.
func TightestConstraint(err error) (Constraint, bool) {
	var nf *NoFeasibleError
	if errors.As(err, &nf) {
		return nf.Constraint, true
	}
	return Constraint{}, false
}

// constraintTracker keeps the violation with the smallest excess seen while pruning.
type constraintTracker struct {
	tightest *Constraint
}

func (t *constraintTracker) offer(kind ConstraintKind, excess float64, detail func() string) {
	if t.tightest != nil && excess >= t.tightest.Excess {
		return
	}
	t.tightest = &Constraint{Kind: kind, Excess: excess, Detail: detail()}
}

func (t *constraintTracker) get() *Constraint {
	if t.tightest == nil {
		return nil
	}
	c := *t.tightest
	return &c
}
