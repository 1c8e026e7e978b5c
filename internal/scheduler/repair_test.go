package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairSwapsConflictingSection(t *testing.T) {
	catalog := NewCatalog([]Section{
		lecture("A100", "a", 6, slot(Monday, 1), slot(Monday, 2)),
		lecture("A100", "b", 6, slot(Tuesday, 1), slot(Tuesday, 2)),
		lecture("B100", "", 6, slot(Monday, 1), slot(Monday, 2)),
	})
	p := problemFor(catalog, map[string]Selection{
		"A100": SelectionMandatory,
		"B100": SelectionMandatory,
	}, Preferences{}, DefaultOverlapPolicy(), 0)

	a, _ := catalog.Group("A100")
	b, _ := catalog.Group("B100")
	broken := buildSchedule([]Entry{
		{Section: a.Sections[0], Selection: SelectionMandatory},
		{Section: b.Sections[0], Selection: SelectionMandatory},
	}, p.Policy, p.Scorer)
	require.False(t, broken.Feasible())

	res := Repair(broken, p, 0)
	require.True(t, res.Feasible)
	assert.Equal(t, 1, res.Swaps)
	assert.Equal(t, "A100.b,B100", res.Schedule.Key())
	assert.Zero(t, res.Schedule.Severity())
}

func TestRepairPrefersLowFrequencyGroup(t *testing.T) {
	catalog := NewCatalog([]Section{
		lecture("A100", "a", 3, slot(Monday, 1), slot(Monday, 2)),
		lecture("A100", "b", 3, slot(Tuesday, 1)),
		lecture("B100", "a", 3, slot(Monday, 1), slot(Monday, 2)),
		lecture("B100", "b", 3, slot(Wednesday, 1)),
	})
	prefs := Preferences{Frequencies: map[string]Frequency{
		"A100": FrequencyRarely,
		"B100": FrequencyAlways,
	}}
	p := problemFor(catalog, map[string]Selection{
		"A100": SelectionOptional,
		"B100": SelectionOptional,
	}, prefs, DefaultOverlapPolicy(), 0)

	a, _ := catalog.Group("A100")
	b, _ := catalog.Group("B100")
	broken := buildSchedule([]Entry{
		{Section: a.Sections[0], Selection: SelectionOptional},
		{Section: b.Sections[0], Selection: SelectionOptional},
	}, p.Policy, p.Scorer)

	res := Repair(broken, p, DefaultRepairSwaps)
	require.True(t, res.Feasible)
	assert.Equal(t, "A100.b,B100.a", res.Schedule.Key())
}

func TestRepairNeverRaisesSeverity(t *testing.T) {
	catalog := NewCatalog([]Section{
		lecture("A100", "", 6, slot(Monday, 1), slot(Monday, 2)),
		lecture("B100", "a", 6, slot(Monday, 1), slot(Monday, 2)),
		lecture("B100", "b", 6, slot(Monday, 1), slot(Monday, 2), slot(Monday, 3)),
	})
	policy := DefaultOverlapPolicy()
	policy.BufferPeriods = 1
	p := problemFor(catalog, map[string]Selection{
		"A100": SelectionMandatory,
		"B100": SelectionMandatory,
	}, Preferences{}, policy, 0)

	a, _ := catalog.Group("A100")
	b, _ := catalog.Group("B100")
	broken := buildSchedule([]Entry{
		{Section: a.Sections[0], Selection: SelectionMandatory},
		{Section: b.Sections[0], Selection: SelectionMandatory},
	}, p.Policy, p.Scorer)

	res := Repair(broken, p, DefaultRepairSwaps)
	assert.False(t, res.Feasible)
	assert.Zero(t, res.Swaps)
	assert.Equal(t, broken.Key(), res.Schedule.Key())
	assert.LessOrEqual(t, res.Schedule.Severity(), broken.Severity())
}

func TestRepairRejectsSwapThatRaisesCost(t *testing.T) {
	penalized := lecture("A100", "b", 6, slot(Tuesday, 1), slot(Tuesday, 2))
	penalized.Instructors = []string{"Dr X"}
	catalog := NewCatalog([]Section{
		lecture("A100", "a", 6, slot(Monday, 1), slot(Monday, 2)),
		penalized,
		lecture("B100", "", 6, slot(Monday, 1), slot(Monday, 2)),
	})
	prefs := Preferences{Instructors: map[string]float64{"Dr X": 100}}
	p := problemFor(catalog, map[string]Selection{
		"A100": SelectionMandatory,
		"B100": SelectionMandatory,
	}, prefs, DefaultOverlapPolicy(), 0)

	a, _ := catalog.Group("A100")
	b, _ := catalog.Group("B100")
	broken := buildSchedule([]Entry{
		{Section: a.Sections[0], Selection: SelectionMandatory},
		{Section: b.Sections[0], Selection: SelectionMandatory},
	}, p.Policy, p.Scorer)
	require.Equal(t, 2, broken.Severity())

	res := Repair(broken, p, DefaultRepairSwaps)
	assert.Zero(t, res.Swaps)
	assert.False(t, res.Feasible)
	assert.Equal(t, broken.Key(), res.Schedule.Key())
	assert.LessOrEqual(t, res.Schedule.Cost(), broken.Cost())
}

func TestRepairKeepsCostMonotone(t *testing.T) {
	cheap := lecture("A100", "b", 6, slot(Tuesday, 1), slot(Tuesday, 2))
	cheap.Instructors = []string{"Dr Y"}
	catalog := NewCatalog([]Section{
		lecture("A100", "a", 6, slot(Monday, 1), slot(Monday, 2)),
		cheap,
		lecture("B100", "", 6, slot(Monday, 1), slot(Monday, 2)),
	})
	prefs := Preferences{Instructors: map[string]float64{"Dr Y": 5}}
	p := problemFor(catalog, map[string]Selection{
		"A100": SelectionMandatory,
		"B100": SelectionMandatory,
	}, prefs, DefaultOverlapPolicy(), 0)

	a, _ := catalog.Group("A100")
	b, _ := catalog.Group("B100")
	broken := buildSchedule([]Entry{
		{Section: a.Sections[0], Selection: SelectionMandatory},
		{Section: b.Sections[0], Selection: SelectionMandatory},
	}, p.Policy, p.Scorer)

	res := Repair(broken, p, DefaultRepairSwaps)
	require.True(t, res.Feasible)
	assert.Equal(t, "A100.b,B100", res.Schedule.Key())
	assert.Less(t, res.Schedule.Cost(), broken.Cost())
}
