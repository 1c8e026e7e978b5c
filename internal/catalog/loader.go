// Package catalog reads course sections, student selections and instructor penalties
// from delimited text files.
package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-adp-planner/internal/dto"
	"github.com/noah-isme/sma-adp-planner/internal/scheduler"
)

type sectionRow struct {
	CourseCode  string `csv:"course_code"`
	Section     string `csv:"section"`
	Kind        string `csv:"kind"`
	ECTS        string `csv:"ects"`
	Instructors string `csv:"instructors"`
	Slots       string `csv:"slots"`
}

type selectionRow struct {
	CourseCode string `csv:"course_code"`
	Selection  string `csv:"selection"`
	Frequency  string `csv:"frequency"`
}

type instructorRow struct {
	Instructor string `csv:"instructor"`
	Penalty    string `csv:"penalty"`
}

// Bundle is everything the planner needs from disk.
type Bundle struct {
	Sections    []scheduler.Section
	Selection   map[string]scheduler.Selection
	Preferences scheduler.Preferences
}

// Catalog groups the loaded sections.
func (b *Bundle) Catalog() *scheduler.Catalog {
	return scheduler.NewCatalog(b.Sections)
}

// Request converts the bundle into an API plan request so file input and HTTP input
// share the same defaults.
func (b *Bundle) Request() dto.PlanRequest {
	req := dto.PlanRequest{
		Sections:    make([]dto.SectionRequest, 0, len(b.Sections)),
		Selection:   make(map[string]string, len(b.Selection)),
		Frequencies: make(map[string]string, len(b.Preferences.Frequencies)),
		Instructors: b.Preferences.Instructors,
	}
	for _, sec := range b.Sections {
		req.Sections = append(req.Sections, dto.SectionRequest{
			Code:        sec.Code,
			Suffix:      sec.Suffix,
			Kind:        string(sec.Kind),
			ECTS:        sec.ECTS,
			Instructors: sec.Instructors,
			Slots: lo.Map(sec.Slots, func(slot scheduler.TimeSlot, _ int) dto.SlotRequest {
				return dto.SlotRequest{Day: slot.Day, Period: slot.Period}
			}),
		})
	}
	for code, sel := range b.Selection {
		req.Selection[code] = string(sel)
	}
	for key, freq := range b.Preferences.Frequencies {
		req.Frequencies[key] = string(freq)
	}
	return req
}

// LoadFiles reads a catalog file plus optional selection and instructor files. Without
// a selection file every course group is mandatory.
func LoadFiles(catalogPath, selectionPath, instructorsPath string) (*Bundle, error) {
	bundle := &Bundle{}
	if err := withFile(catalogPath, func(r io.Reader) (err error) {
		bundle.Sections, err = LoadSections(r)
		return err
	}); err != nil {
		return nil, err
	}

	if selectionPath != "" {
		if err := withFile(selectionPath, func(r io.Reader) (err error) {
			bundle.Selection, bundle.Preferences.Frequencies, err = LoadSelection(r)
			return err
		}); err != nil {
			return nil, err
		}
	} else {
		bundle.Selection = make(map[string]scheduler.Selection)
		for _, sec := range bundle.Sections {
			bundle.Selection[sec.Code] = scheduler.SelectionMandatory
		}
	}

	if instructorsPath != "" {
		if err := withFile(instructorsPath, func(r io.Reader) (err error) {
			bundle.Preferences.Instructors, err = LoadInstructors(r)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// LoadSections parses rows of course_code;section;kind;ects;instructors;slots. Kind
// defaults to LECTURE, instructors are separated by '|' and slots look like "Mon/1 Tue/2".
func LoadSections(r io.Reader) ([]scheduler.Section, error) {
	var rows []*sectionRow
	if err := unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	sections := make([]scheduler.Section, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := i + 2
		sec := scheduler.Section{
			Code:   strings.TrimSpace(row.CourseCode),
			Suffix: strings.TrimSpace(row.Section),
			Kind:   scheduler.SectionKind(strings.ToUpper(strings.TrimSpace(row.Kind))),
		}
		if sec.Code == "" {
			return nil, fmt.Errorf("catalog line %d: course_code is required", line)
		}
		if sec.Kind == "" {
			sec.Kind = scheduler.KindLecture
		}
		if !sec.Kind.Valid() {
			return nil, fmt.Errorf("catalog line %d: unknown kind %q", line, row.Kind)
		}
		ects, err := parseNumber(row.ECTS)
		if err != nil || ects < 0 {
			return nil, fmt.Errorf("catalog line %d: invalid ects %q", line, row.ECTS)
		}
		sec.ECTS = ects
		sec.Instructors = splitList(row.Instructors, "|")
		if sec.Slots, err = ParseSlots(row.Slots); err != nil {
			return nil, fmt.Errorf("catalog line %d: %w", line, err)
		}
		if len(sec.Slots) == 0 {
			return nil, fmt.Errorf("catalog line %d: section %s has no slots", line, sec.ID())
		}
		if prev, dup := seen[sec.ID()]; dup {
			return nil, fmt.Errorf("catalog line %d: section %s already defined on line %d", line, sec.ID(), prev)
		}
		seen[sec.ID()] = line
		sections = append(sections, sec)
	}
	return sections, nil
}

// LoadSelection parses rows of course_code;selection;frequency. The frequency column may
// be empty; the key may be a course code or a section ID.
func LoadSelection(r io.Reader) (map[string]scheduler.Selection, map[string]scheduler.Frequency, error) {
	var rows []*selectionRow
	if err := unmarshal(r, &rows); err != nil {
		return nil, nil, fmt.Errorf("read selection: %w", err)
	}
	selection := make(map[string]scheduler.Selection, len(rows))
	frequencies := make(map[string]scheduler.Frequency)
	for i, row := range rows {
		line := i + 2
		code := strings.TrimSpace(row.CourseCode)
		if code == "" {
			return nil, nil, fmt.Errorf("selection line %d: course_code is required", line)
		}
		if raw := strings.TrimSpace(row.Selection); raw != "" {
			sel := scheduler.Selection(strings.ToUpper(raw))
			if !sel.Valid() {
				return nil, nil, fmt.Errorf("selection line %d: unknown selection %q", line, row.Selection)
			}
			selection[code] = sel
		}
		if raw := strings.TrimSpace(row.Frequency); raw != "" {
			freq := scheduler.Frequency(strings.ToUpper(raw))
			if !freq.Valid() {
				return nil, nil, fmt.Errorf("selection line %d: unknown frequency %q", line, row.Frequency)
			}
			frequencies[code] = freq
		}
	}
	return selection, frequencies, nil
}

// LoadInstructors parses rows of instructor;penalty.
func LoadInstructors(r io.Reader) (map[string]float64, error) {
	var rows []*instructorRow
	if err := unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read instructors: %w", err)
	}
	penalties := make(map[string]float64, len(rows))
	for i, row := range rows {
		name := strings.TrimSpace(row.Instructor)
		if name == "" {
			return nil, fmt.Errorf("instructors line %d: instructor is required", i+2)
		}
		penalty, err := parseNumber(row.Penalty)
		if err != nil || penalty < 0 {
			return nil, fmt.Errorf("instructors line %d: invalid penalty %q", i+2, row.Penalty)
		}
		penalties[name] = penalty
	}
	return penalties, nil
}

// ParseSlots reads whitespace or comma separated "Day/Period" pairs.
func ParseSlots(raw string) ([]scheduler.TimeSlot, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	slots := make([]scheduler.TimeSlot, 0, len(fields))
	for _, field := range fields {
		dayPart, periodPart, ok := strings.Cut(field, "/")
		if !ok {
			return nil, fmt.Errorf("slot %q is not Day/Period", field)
		}
		day, err := ParseDay(dayPart)
		if err != nil {
			return nil, err
		}
		period, err := strconv.Atoi(strings.TrimSpace(periodPart))
		if err != nil || period < 0 {
			return nil, fmt.Errorf("slot %q has an invalid period", field)
		}
		slots = append(slots, scheduler.TimeSlot{Day: day, Period: period})
	}
	return slots, nil
}

// ParseDay accepts Mon, Monday, MONDAY or 1..7.
func ParseDay(raw string) (int, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(value); err == nil {
		if n >= scheduler.Monday && n <= scheduler.Sunday {
			return n, nil
		}
		return 0, fmt.Errorf("day %q out of range", raw)
	}
	if len(value) >= 3 {
		for day := scheduler.Monday; day <= scheduler.Sunday; day++ {
			if strings.HasPrefix(scheduler.DayName(day), value) {
				return day, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

func unmarshal(r io.Reader, out interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffComma(data)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	return gocsv.UnmarshalCSV(reader, out)
}

// sniffComma picks ';' unless the header line only contains commas.
func sniffComma(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, ";") && strings.Contains(line, ",") {
			return ','
		}
		break
	}
	return ';'
}

func splitList(raw, sep string) []string {
	parts := lo.Map(strings.Split(raw, sep), func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Uniq(lo.Compact(parts))
}

func parseNumber(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
}

func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
