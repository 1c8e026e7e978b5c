package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// Day indexes follow ISO weekday numbering.
const (
	Monday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = map[int]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

// DayName returns the upper-case weekday name for a day index, or an empty string.
func DayName(day int) string {
	return dayNames[day]
}

// TimeSlot is one teaching period on a weekday.
type TimeSlot struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// Valid reports whether the slot references a weekday and a non-negative period.
func (t TimeSlot) Valid() bool {
	return t.Day >= Monday && t.Day <= Sunday && t.Period >= 0
}

func (t TimeSlot) String() string {
	name := DayName(t.Day)
	if name == "" {
		return fmt.Sprintf("?%d/%d", t.Day, t.Period)
	}
	return fmt.Sprintf("%s/%d", name[:1]+strings.ToLower(name[1:3]), t.Period)
}

func slotLess(a, b TimeSlot) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Period < b.Period
}

// normalizeSlots collapses duplicate slots and orders them by day then period.
func normalizeSlots(slots []TimeSlot) []TimeSlot {
	if len(slots) == 0 {
		return nil
	}
	seen := make(map[TimeSlot]struct{}, len(slots))
	out := make([]TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := seen[slot]; ok {
			continue
		}
		seen[slot] = struct{}{}
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return slotLess(out[i], out[j]) })
	return out
}

// SectionKind tags the teaching format of a section.
type SectionKind string

const (
	KindLecture        SectionKind = "LECTURE"
	KindLab            SectionKind = "LAB"
	KindProblemSession SectionKind = "PROBLEM_SESSION"
)

// Valid reports whether the kind is one of the known formats.
func (k SectionKind) Valid() bool {
	switch k {
	case KindLecture, KindLab, KindProblemSession:
		return true
	}
	return false
}

// Section is a schedulable unit of a course bound to fixed weekly slots.
type Section struct {
	Code        string      `json:"code"`
	Suffix      string      `json:"suffix"`
	Kind        SectionKind `json:"kind"`
	ECTS        float64     `json:"ects"`
	Instructors []string    `json:"instructors,omitempty"`
	Slots       []TimeSlot  `json:"slots"`
}

// ID identifies the section uniquely inside a catalog.
func (s Section) ID() string {
	if s.Suffix == "" {
		return s.Code
	}
	return s.Code + "." + s.Suffix
}

func (s Section) footprint() string {
	var b strings.Builder
	b.WriteString(s.Code)
	b.WriteByte(':')
	b.WriteString(string(s.Kind))
	for _, slot := range s.Slots {
		fmt.Fprintf(&b, ":%d.%d", slot.Day, slot.Period)
	}
	return b.String()
}

// CourseGroup holds every section sharing a base course code.
type CourseGroup struct {
	Code     string    `json:"code"`
	Sections []Section `json:"sections"`
}

// Catalog is an immutable, normalized snapshot of course groups.
type Catalog struct {
	groups []CourseGroup
	index  map[string]int
}

// NewCatalog groups sections by base code. Slots are normalized, groups are ordered by
// code and sections by ID. When two sections share an ID the first one is kept.
func NewCatalog(sections []Section) *Catalog {
	byCode := make(map[string][]Section)
	seen := make(map[string]struct{}, len(sections))
	for _, sec := range sections {
		code := strings.TrimSpace(sec.Code)
		if code == "" {
			continue
		}
		sec.Code = code
		sec.Suffix = strings.TrimSpace(sec.Suffix)
		if _, dup := seen[sec.ID()]; dup {
			continue
		}
		seen[sec.ID()] = struct{}{}
		sec.Slots = normalizeSlots(sec.Slots)
		if len(sec.Instructors) > 0 {
			sec.Instructors = append([]string(nil), sec.Instructors...)
		}
		byCode[code] = append(byCode[code], sec)
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	catalog := &Catalog{
		groups: make([]CourseGroup, 0, len(codes)),
		index:  make(map[string]int, len(codes)),
	}
	for _, code := range codes {
		secs := byCode[code]
		sort.Slice(secs, func(i, j int) bool { return secs[i].ID() < secs[j].ID() })
		catalog.index[code] = len(catalog.groups)
		catalog.groups = append(catalog.groups, CourseGroup{Code: code, Sections: secs})
	}
	return catalog
}

// Groups returns the course groups ordered by code. Callers must not mutate the sections.
func (c *Catalog) Groups() []CourseGroup {
	if c == nil {
		return nil
	}
	return append([]CourseGroup(nil), c.groups...)
}

// Group looks up a course group by base code.
func (c *Catalog) Group(code string) (CourseGroup, bool) {
	if c == nil {
		return CourseGroup{}, false
	}
	idx, ok := c.index[code]
	if !ok {
		return CourseGroup{}, false
	}
	return c.groups[idx], true
}

// Len returns the number of course groups.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.groups)
}

// Selection is the tri-state choice a student makes per course group.
type Selection string

const (
	SelectionMandatory Selection = "MANDATORY"
	SelectionOptional  Selection = "OPTIONAL"
	SelectionExcluded  Selection = "EXCLUDED"
)

// Valid reports whether the selection is one of the three states.
func (s Selection) Valid() bool {
	switch s {
	case SelectionMandatory, SelectionOptional, SelectionExcluded:
		return true
	}
	return false
}

// Frequency expresses how often a student wants to attend a course.
type Frequency string

const (
	FrequencyAlways Frequency = "ALWAYS"
	FrequencyOften  Frequency = "OFTEN"
	FrequencyRarely Frequency = "RARELY"
	FrequencyNever  Frequency = "NEVER"
)

// MaxFrequencyWeight is the weight of FrequencyAlways.
const MaxFrequencyWeight = 3

// Weight maps a frequency to its ordinal weight; unknown values count as OFTEN.
func (f Frequency) Weight() int {
	switch f {
	case FrequencyAlways:
		return 3
	case FrequencyRarely:
		return 1
	case FrequencyNever:
		return 0
	default:
		return 2
	}
}

// Valid reports whether the frequency is a known value.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyAlways, FrequencyOften, FrequencyRarely, FrequencyNever:
		return true
	}
	return false
}

// Preferences carries the soft inputs of a planning run.
type Preferences struct {
	// Frequencies is keyed by group code or by section ID; section keys win.
	Frequencies map[string]Frequency
	// Instructors maps an instructor name to the penalty charged per chosen section they teach.
	Instructors map[string]float64
}

// GroupFrequency returns the frequency attached to a course group.
func (p Preferences) GroupFrequency(code string) Frequency {
	if f, ok := p.Frequencies[code]; ok && f.Valid() {
		return f
	}
	return FrequencyOften
}

// SectionFrequency returns the frequency for a section, falling back to its group.
func (p Preferences) SectionFrequency(sec Section) Frequency {
	if f, ok := p.Frequencies[sec.ID()]; ok && f.Valid() {
		return f
	}
	return p.GroupFrequency(sec.Code)
}

// OverlapPolicy bounds how much overlap a schedule may carry. The zero value forbids
// every overlap; use DefaultOverlapPolicy for the relaxed defaults.
type OverlapPolicy struct {
	// MaxPairOverlap is the largest severity, in periods, allowed between two sections.
	MaxPairOverlap int `json:"maxPairOverlap"`
	// MaxConflictingPairs is the number of overlapping section pairs allowed per schedule.
	MaxConflictingPairs int `json:"maxConflictingPairs"`
	// BufferPeriods widens the overlap test to periods this close on the same day.
	BufferPeriods int `json:"bufferPeriods"`
	// PeriodMinutes converts severities into minutes for reporting.
	PeriodMinutes int `json:"periodMinutes"`
}

// DefaultOverlapPolicy allows one overlapping period per pair and two overlapping pairs.
func DefaultOverlapPolicy() OverlapPolicy {
	return OverlapPolicy{
		MaxPairOverlap:      1,
		MaxConflictingPairs: 2,
		BufferPeriods:       0,
		PeriodMinutes:       60,
	}
}

func (p OverlapPolicy) normalized() OverlapPolicy {
	if p.MaxPairOverlap < 0 {
		p.MaxPairOverlap = 0
	}
	if p.MaxConflictingPairs < 0 {
		p.MaxConflictingPairs = 0
	}
	if p.BufferPeriods < 0 {
		p.BufferPeriods = 0
	}
	if p.PeriodMinutes <= 0 {
		p.PeriodMinutes = 60
	}
	return p
}
