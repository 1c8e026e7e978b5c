package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

func TestAssembleOrdersDecisionPoints(t *testing.T) {
	catalog := NewCatalog([]Section{
		lecture("M200", "a", 6, slot(Monday, 1)),
		lecture("M200", "b", 6, slot(Tuesday, 1)),
		lecture("M100", "", 6, slot(Wednesday, 1)),
		lecture("O100", "", 3, slot(Thursday, 1)),
		lecture("O200", "", 3, slot(Thursday, 2)),
		lecture("O300", "", 3, slot(Thursday, 3)),
		lecture("X100", "", 3, slot(Friday, 1)),
	})
	selection := map[string]Selection{
		"M100": SelectionMandatory,
		"M200": SelectionMandatory,
		"O100": SelectionOptional,
		"O200": SelectionOptional,
		"O300": SelectionOptional,
		"X100": SelectionExcluded,
		"Z999": SelectionOptional,
	}
	prefs := Preferences{Frequencies: map[string]Frequency{
		"O100": FrequencyRarely,
		"O300": FrequencyAlways,
	}}

	points, err := Assemble(catalog, selection, prefs)
	require.NoError(t, err)

	codes := make([]string, len(points))
	for i, p := range points {
		codes[i] = p.Group.Code
	}
	assert.Equal(t, []string{"M100", "M200", "O300", "O200", "O100"}, codes)
	assert.True(t, points[0].Mandatory())
	assert.False(t, points[2].Mandatory())
	assert.Equal(t, FrequencyOften, points[3].Frequency)
}

func TestAssembleMissingMandatory(t *testing.T) {
	catalog := NewCatalog([]Section{lecture("M100", "", 6, slot(Monday, 1))})

	_, err := Assemble(catalog, map[string]Selection{
		"M100": SelectionMandatory,
		"Z200": SelectionMandatory,
		"Z100": SelectionMandatory,
	}, Preferences{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInfeasibleSelection))

	var infeasible *InfeasibleSelectionError
	require.True(t, errors.As(err, &infeasible))
	assert.Equal(t, []string{"Z100", "Z200"}, infeasible.Codes)
}

func TestAssembleRejectsUnknownSelection(t *testing.T) {
	catalog := NewCatalog([]Section{lecture("M100", "", 6, slot(Monday, 1))})

	_, err := Assemble(catalog, map[string]Selection{"M100": "MAYBE"}, Preferences{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestNewCatalogNormalizes(t *testing.T) {
	catalog := NewCatalog([]Section{
		lecture(" M100 ", "b", 6, slot(Tuesday, 2), slot(Monday, 1), slot(Tuesday, 2)),
		lecture("M100", "a", 6, slot(Monday, 3)),
		lecture("M100", "a", 9, slot(Friday, 3)),
		lecture("", "a", 6, slot(Monday, 3)),
	})

	require.Equal(t, 1, catalog.Len())
	group, ok := catalog.Group("M100")
	require.True(t, ok)
	require.Len(t, group.Sections, 2)
	assert.Equal(t, "M100.a", group.Sections[0].ID())
	assert.InDelta(t, 6.0, group.Sections[0].ECTS, 1e-9)
	assert.Equal(t, []TimeSlot{slot(Monday, 1), slot(Tuesday, 2)}, group.Sections[1].Slots)
}
