package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

func baseInput(sections []Section, selection map[string]Selection) Input {
	return Input{
		Catalog:   NewCatalog(sections),
		Selection: selection,
		Policy:    DefaultOverlapPolicy(),
		Budget:    DefaultBudget(),
		Seed:      1,
	}
}

func TestPlanIdenticalAlternativesYieldOneSchedule(t *testing.T) {
	in := baseInput([]Section{
		lecture("MATH101", "a", 6, slot(Monday, 1)),
		lecture("MATH101", "b", 6, slot(Monday, 1)),
	}, map[string]Selection{"MATH101": SelectionMandatory})

	res, err := Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Schedules, 1)
	s := res.Schedules[0]
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.Conflicts())
	sec, ok := s.Section("MATH101")
	require.True(t, ok)
	assert.Contains(t, []string{"a", "b"}, sec.Suffix)
	assert.True(t, res.Stats.Exhaustive)
	assert.Equal(t, []string{"exhaustive"}, res.Stats.Strategies)
}

func TestPlanStrictPolicyNoFeasibleSchedule(t *testing.T) {
	in := baseInput([]Section{
		lecture("MATH101", "", 6, slot(Monday, 1)),
		lecture("PHYS101", "", 6, slot(Monday, 1)),
	}, map[string]Selection{
		"MATH101": SelectionMandatory,
		"PHYS101": SelectionMandatory,
	})
	in.Policy.MaxPairOverlap = 0

	res, err := Plan(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, appErrors.ErrNoFeasibleSchedule))
	assert.Equal(t, 422, appErrors.FromError(err).Status)

	constraint, ok := TightestConstraint(err)
	require.True(t, ok)
	assert.Equal(t, ConstraintPairOverlap, constraint.Kind)
}

func TestPlanToleratesSinglePeriodOverlap(t *testing.T) {
	in := baseInput([]Section{
		lecture("MATH101", "", 6, slot(Monday, 1), slot(Tuesday, 1)),
		lecture("PHYS101", "", 6, slot(Monday, 1), slot(Thursday, 2)),
	}, map[string]Selection{
		"MATH101": SelectionMandatory,
		"PHYS101": SelectionMandatory,
	})

	res, err := Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Schedules, 1)
	s := res.Best()
	assert.True(t, s.Feasible())
	assert.Equal(t, []string{"MATH101", "PHYS101"}, groupCodes(s))
	assert.Equal(t, 1, s.Severity())
	require.Len(t, s.Conflicts(), 1)
	assert.Equal(t, 60, s.Conflicts()[0].Minutes)
}

func TestPlanFillsCeilingWithPreferredOptionals(t *testing.T) {
	in := baseInput([]Section{
		lecture("M100", "", 6, slot(Monday, 1)),
		lecture("M200", "", 3, slot(Monday, 2)),
		lecture("O100", "", 3, slot(Tuesday, 1)),
		lecture("O200", "", 3, slot(Wednesday, 1)),
		lecture("O300", "", 3, slot(Thursday, 1)),
	}, map[string]Selection{
		"M100": SelectionMandatory,
		"M200": SelectionMandatory,
		"O100": SelectionOptional,
		"O200": SelectionOptional,
		"O300": SelectionOptional,
	})
	in.ECTSCeiling = 15
	in.Preferences = Preferences{Frequencies: map[string]Frequency{
		"O100": FrequencyRarely,
		"O200": FrequencyAlways,
		"O300": FrequencyOften,
	}}

	res, err := Plan(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, res.Schedules)

	best := res.Best()
	assert.Equal(t, []string{"M100", "M200", "O200", "O300"}, groupCodes(best))
	assert.InDelta(t, 15.0, best.ECTS(), 1e-9)
	for _, s := range res.Schedules {
		assert.LessOrEqual(t, s.ECTS(), 15.0)
		optional := 0
		for _, e := range s.Entries() {
			if e.Selection == SelectionOptional {
				optional++
			}
		}
		assert.Equal(t, 2, optional)
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	in := Input{
		Catalog:   catalogOf(annealFixture()),
		Selection: map[string]Selection{"A100": SelectionMandatory, "B100": SelectionMandatory, "C100": SelectionOptional},
		Policy:    DefaultOverlapPolicy(),
		Budget:    DefaultBudget(),
		Seed:      9,
	}

	first, err := Plan(context.Background(), in)
	require.NoError(t, err)
	second, err := Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, scheduleKeys(first.Schedules), scheduleKeys(second.Schedules))
}

func TestPlanEveryScheduleHonoursBounds(t *testing.T) {
	p := annealFixture()
	in := Input{
		Catalog:     catalogOf(p),
		Selection:   map[string]Selection{"A100": SelectionMandatory, "B100": SelectionMandatory, "C100": SelectionOptional},
		Policy:      DefaultOverlapPolicy(),
		Budget:      DefaultBudget(),
		ECTSCeiling: 15,
		K:           10,
	}

	res, err := Plan(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, res.Schedules)
	assert.LessOrEqual(t, len(res.Schedules), 10)
	seen := map[string]bool{}
	for i, s := range res.Schedules {
		assert.True(t, s.Feasible())
		assert.LessOrEqual(t, s.ECTS(), 15.0)
		assert.False(t, seen[s.Footprint()])
		seen[s.Footprint()] = true
		if i > 0 {
			assert.LessOrEqual(t, res.Schedules[i-1].Cost(), s.Cost())
		}
	}
}

func TestPlanAnnealsWhenEnumerationTruncated(t *testing.T) {
	sections, selection := gridCatalog(6, 4)
	in := baseInput(sections, selection)
	in.Budget = Budget{MaxNodes: 8}
	in.K = 5
	in.Annealing = AnnealConfig{MaxIterations: 200}

	res, err := Plan(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.False(t, res.Stats.Exhaustive)
	assert.Equal(t, []string{"exhaustive", "perturbative"}, res.Stats.Strategies)
	assert.Greater(t, len(res.Schedules), 1)
	for _, s := range res.Schedules {
		assert.Equal(t, 6, s.Len())
	}
}

func TestPlanEmptyCatalog(t *testing.T) {
	_, err := Plan(context.Background(), Input{Catalog: NewCatalog(nil)})
	require.Error(t, err)
	constraint, ok := TightestConstraint(err)
	require.True(t, ok)
	assert.Equal(t, ConstraintNoCandidates, constraint.Kind)
}

func TestPlanAllExcluded(t *testing.T) {
	in := baseInput([]Section{lecture("M100", "", 6, slot(Monday, 1))},
		map[string]Selection{"M100": SelectionExcluded})

	_, err := Plan(context.Background(), in)
	assert.True(t, errors.Is(err, appErrors.ErrNoFeasibleSchedule))
}

func TestPlanMandatoryWithoutSections(t *testing.T) {
	in := baseInput([]Section{lecture("M100", "", 6, slot(Monday, 1))},
		map[string]Selection{"M100": SelectionMandatory, "GHOST": SelectionMandatory})

	_, err := Plan(context.Background(), in)
	assert.True(t, errors.Is(err, appErrors.ErrInfeasibleSelection))
}

func TestPlanCancelledReturnsWithoutError(t *testing.T) {
	sections, selection := gridCatalog(5, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Plan(ctx, baseInput(sections, selection))
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Schedules)
}
