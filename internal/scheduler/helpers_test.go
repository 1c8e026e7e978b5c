package scheduler

func slot(day, period int) TimeSlot {
	return TimeSlot{Day: day, Period: period}
}

func lecture(code, suffix string, ects float64, slots ...TimeSlot) Section {
	return Section{Code: code, Suffix: suffix, Kind: KindLecture, ECTS: ects, Slots: slots}
}

func problemFor(catalog *Catalog, selection map[string]Selection, prefs Preferences, policy OverlapPolicy, ceiling float64) *Problem {
	points, err := Assemble(catalog, selection, prefs)
	if err != nil {
		panic(err)
	}
	return &Problem{
		Points:      points,
		Policy:      policy,
		ECTSCeiling: ceiling,
		K:           DefaultK,
		Scorer:      NewScorer(DefaultWeights(), ceiling, prefs),
	}
}

func scheduleKeys(schedules []*Schedule) []string {
	keys := make([]string, len(schedules))
	for i, s := range schedules {
		keys[i] = s.Key()
	}
	return keys
}

func groupCodes(s *Schedule) []string {
	codes := make([]string, 0, s.Len())
	for _, e := range s.Entries() {
		codes = append(codes, e.Section.Code)
	}
	return codes
}

// gridCatalog builds groups sections each, every section on its own period so that
// nothing overlaps and the search tree is groups^sections wide.
func gridCatalog(groups, sections int) ([]Section, map[string]Selection) {
	var out []Section
	selection := make(map[string]Selection, groups)
	for g := 0; g < groups; g++ {
		code := string(rune('A'+g)) + "100"
		selection[code] = SelectionMandatory
		for s := 0; s < sections; s++ {
			out = append(out, lecture(code, string(rune('a'+s)), 3, slot(Monday+s%5, g*sections+s)))
		}
	}
	return out, selection
}

func catalogOf(p *Problem) *Catalog {
	var sections []Section
	for _, point := range p.Points {
		sections = append(sections, point.Group.Sections...)
	}
	return NewCatalog(sections)
}
