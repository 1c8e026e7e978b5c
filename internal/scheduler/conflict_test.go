package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflictSameSlot(t *testing.T) {
	a := lecture("MATH101", "a", 6, slot(Monday, 1), slot(Wednesday, 2))
	b := lecture("PHYS101", "", 6, slot(Monday, 1), slot(Friday, 3))

	c, ok := DetectConflict(b, a, DefaultOverlapPolicy())
	require.True(t, ok)
	assert.Equal(t, "MATH101.a", c.A.ID())
	assert.Equal(t, "PHYS101", c.B.ID())
	assert.Equal(t, 1, c.Severity)
	assert.Equal(t, 60, c.Minutes)
	assert.Equal(t, []TimeSlot{slot(Monday, 1)}, c.Slots)
}

func TestDetectConflictNoOverlap(t *testing.T) {
	a := lecture("MATH101", "", 6, slot(Monday, 1))
	b := lecture("PHYS101", "", 6, slot(Monday, 2), slot(Tuesday, 1))

	_, ok := DetectConflict(a, b, DefaultOverlapPolicy())
	assert.False(t, ok)
}

func TestDetectConflictBufferWidensOverlap(t *testing.T) {
	a := lecture("MATH101", "", 6, slot(Monday, 1))
	b := lecture("PHYS101", "", 6, slot(Monday, 2))

	policy := DefaultOverlapPolicy()
	policy.BufferPeriods = 1
	c, ok := DetectConflict(a, b, policy)
	require.True(t, ok)
	assert.Equal(t, 1, c.Severity)
}

func TestDetectConflictSameSectionIgnored(t *testing.T) {
	a := lecture("MATH101", "a", 6, slot(Monday, 1))
	_, ok := DetectConflict(a, a, DefaultOverlapPolicy())
	assert.False(t, ok)
}

func TestOverlapPolicyEvaluate(t *testing.T) {
	sections := []Section{
		lecture("A100", "", 3, slot(Monday, 1), slot(Monday, 2)),
		lecture("B100", "", 3, slot(Monday, 1), slot(Monday, 2)),
		lecture("C100", "", 3, slot(Monday, 1)),
	}
	conflicts := Conflicts(sections, DefaultOverlapPolicy())
	require.Len(t, conflicts, 3)
	assert.Equal(t, "A100|B100", conflicts[0].Pair())

	v := DefaultOverlapPolicy().Evaluate(conflicts)
	assert.False(t, v.Feasible())
	assert.Equal(t, 1, v.PairExcess)
	assert.Equal(t, 1, v.PairCountExcess)
	assert.Equal(t, 2, v.Total())
	require.NotNil(t, v.Worst)
	assert.Equal(t, "A100|B100", v.Worst.Pair())
}

func TestOverlapPolicyZeroValueForbidsOverlap(t *testing.T) {
	sections := []Section{
		lecture("A100", "", 3, slot(Monday, 1)),
		lecture("B100", "", 3, slot(Monday, 1)),
	}
	v := OverlapPolicy{}.Evaluate(Conflicts(sections, OverlapPolicy{}))
	assert.Equal(t, 1, v.PairExcess)
	assert.Equal(t, 1, v.PairCountExcess)
}
