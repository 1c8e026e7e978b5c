package scheduler

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	appErrors "github.com/noah-isme/sma-adp-planner/pkg/errors"
)

// DecisionPoint is one course group the search has to decide on.
type DecisionPoint struct {
	Group     CourseGroup
	Selection Selection
	Frequency Frequency
}

// Mandatory reports whether the group must appear in every schedule.
func (d DecisionPoint) Mandatory() bool {
	return d.Selection == SelectionMandatory
}

// Assemble turns a catalog and a selection into ordered decision points. Mandatory groups
// come first, fewest sections first; optional groups follow by descending frequency.
// Groups missing from the selection are treated as excluded.
func Assemble(catalog *Catalog, selection map[string]Selection, prefs Preferences) ([]DecisionPoint, error) {
	codes := lo.Keys(selection)
	sort.Strings(codes)

	var (
		missing   []string
		mandatory []DecisionPoint
		optional  []DecisionPoint
	)
	for _, code := range codes {
		state := selection[code]
		if !state.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown selection %q for course %s", state, code))
		}
		if state == SelectionExcluded {
			continue
		}
		group, ok := catalog.Group(code)
		hasSections := ok && len(group.Sections) > 0
		point := DecisionPoint{Group: group, Selection: state, Frequency: prefs.GroupFrequency(code)}
		switch state {
		case SelectionMandatory:
			if !hasSections {
				missing = append(missing, code)
				continue
			}
			mandatory = append(mandatory, point)
		case SelectionOptional:
			if hasSections {
				optional = append(optional, point)
			}
		}
	}
	if len(missing) > 0 {
		return nil, infeasibleSelection(missing)
	}

	sort.SliceStable(mandatory, func(i, j int) bool {
		a, b := mandatory[i], mandatory[j]
		if len(a.Group.Sections) != len(b.Group.Sections) {
			return len(a.Group.Sections) < len(b.Group.Sections)
		}
		return a.Group.Code < b.Group.Code
	})
	sort.SliceStable(optional, func(i, j int) bool {
		a, b := optional[i], optional[j]
		if a.Frequency.Weight() != b.Frequency.Weight() {
			return a.Frequency.Weight() > b.Frequency.Weight()
		}
		return a.Group.Code < b.Group.Code
	})
	return append(mandatory, optional...), nil
}

func pointIndex(points []DecisionPoint) map[string]int {
	return lo.SliceToMap(lo.Range(len(points)), func(i int) (string, int) {
		return points[i].Group.Code, i
	})
}
