package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PlanRunStatus represents lifecycle phases for saved plan runs.
type PlanRunStatus string

const (
	PlanRunStatusDraft     PlanRunStatus = "DRAFT"
	PlanRunStatusPublished PlanRunStatus = "PUBLISHED"
	PlanRunStatusArchived  PlanRunStatus = "ARCHIVED"
)

// Valid reports whether the status is a known lifecycle phase.
func (s PlanRunStatus) Valid() bool {
	switch s {
	case PlanRunStatusDraft, PlanRunStatusPublished, PlanRunStatusArchived:
		return true
	}
	return false
}

// PlanRun is a versioned snapshot of a planning result. Versions increase per label.
type PlanRun struct {
	ID          string         `db:"id" json:"id"`
	Label       string         `db:"label" json:"label"`
	RequestedBy string         `db:"requested_by" json:"requested_by"`
	Version     int            `db:"version" json:"version"`
	Status      PlanRunStatus  `db:"status" json:"status"`
	Meta        types.JSONText `db:"meta" json:"meta"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// PlanRunEntry is one slot of one ranked schedule inside a plan run.
type PlanRunEntry struct {
	ID         string    `db:"id" json:"id"`
	PlanRunID  string    `db:"plan_run_id" json:"plan_run_id"`
	Rank       int       `db:"rank" json:"rank"`
	CourseCode string    `db:"course_code" json:"course_code"`
	SectionID  string    `db:"section_id" json:"section_id"`
	Kind       string    `db:"kind" json:"kind"`
	ECTS       float64   `db:"ects" json:"ects"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	Period     int       `db:"period" json:"period"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PlanRunFilter narrows plan run listings.
type PlanRunFilter struct {
	Label    string
	Status   PlanRunStatus
	Page     int
	PageSize int
}

// Pagination describes a paged listing.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	TotalRows int `json:"total_rows"`
}
