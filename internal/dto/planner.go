package dto

import "time"

// SlotRequest is one weekly teaching period.
type SlotRequest struct {
	Day    int `json:"day" validate:"min=1,max=7"`
	Period int `json:"period" validate:"min=0,max=48"`
}

// SectionRequest describes a catalog section offered for planning.
type SectionRequest struct {
	Code        string        `json:"code" validate:"required,max=32"`
	Suffix      string        `json:"suffix" validate:"max=16"`
	Kind        string        `json:"kind" validate:"omitempty,oneof=LECTURE LAB PROBLEM_SESSION"`
	ECTS        float64       `json:"ects" validate:"min=0,max=60"`
	Instructors []string      `json:"instructors" validate:"omitempty,dive,required"`
	Slots       []SlotRequest `json:"slots" validate:"required,min=1,dive"`
}

// PolicyRequest overrides the configured overlap policy. Nil fields keep the default.
type PolicyRequest struct {
	MaxPairOverlap      *int `json:"maxPairOverlap" validate:"omitempty,min=0"`
	MaxConflictingPairs *int `json:"maxConflictingPairs" validate:"omitempty,min=0"`
	BufferPeriods       *int `json:"bufferPeriods" validate:"omitempty,min=0,max=4"`
	PeriodMinutes       *int `json:"periodMinutes" validate:"omitempty,min=1"`
}

// WeightsRequest overrides cost weights. Nil fields keep the default.
type WeightsRequest struct {
	Conflict   *float64 `json:"conflict" validate:"omitempty,min=0"`
	ECTS       *float64 `json:"ects" validate:"omitempty,min=0"`
	Frequency  *float64 `json:"frequency" validate:"omitempty,min=0"`
	Instructor *float64 `json:"instructor" validate:"omitempty,min=0"`
}

// PlanRequest asks the planner for ranked weekly schedules.
type PlanRequest struct {
	Sections []SectionRequest `json:"sections" validate:"omitempty,dive"`
	// Selection maps a course code to MANDATORY, OPTIONAL or EXCLUDED.
	Selection map[string]string `json:"selection" validate:"omitempty,dive,keys,required,endkeys,oneof=MANDATORY OPTIONAL EXCLUDED"`
	// Frequencies maps a course code or section ID to ALWAYS, OFTEN, RARELY or NEVER.
	Frequencies map[string]string  `json:"frequencies" validate:"omitempty,dive,keys,required,endkeys,oneof=ALWAYS OFTEN RARELY NEVER"`
	Instructors map[string]float64 `json:"instructorPenalties" validate:"omitempty,dive,keys,required,endkeys,min=0"`

	Policy      *PolicyRequest  `json:"policy"`
	Weights     *WeightsRequest `json:"weights"`
	ECTSCeiling *float64        `json:"ectsCeiling" validate:"omitempty,min=0"`
	ECTSTarget  *float64        `json:"ectsTarget" validate:"omitempty,min=0"`
	MaxOptional *int            `json:"maxOptional" validate:"omitempty,min=0"`
	TopK        *int            `json:"topK" validate:"omitempty,min=1,max=20"`
	MaxNodes    *int            `json:"maxNodes" validate:"omitempty,min=1"`
	TimeLimitMs *int            `json:"timeLimitMs" validate:"omitempty,min=1,max=60000"`
	TargetScore *float64        `json:"targetScore" validate:"omitempty,min=0"`
	Seeds       []int64         `json:"seeds" validate:"omitempty,max=16"`

	DisableAnnealing bool `json:"disableAnnealing"`
}

// SlotView is a rendered time slot.
type SlotView struct {
	Day     int    `json:"day"`
	DayName string `json:"dayName"`
	Period  int    `json:"period"`
}

// SectionView is a chosen section inside a schedule.
type SectionView struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	ECTS        float64    `json:"ects"`
	Selection   string     `json:"selection"`
	Instructors []string   `json:"instructors,omitempty"`
	Slots       []SlotView `json:"slots"`
}

// ConflictView is an overlapping section pair.
type ConflictView struct {
	A        string     `json:"a"`
	B        string     `json:"b"`
	Slots    []SlotView `json:"slots"`
	Severity int        `json:"severity"`
	Minutes  int        `json:"minutes"`
}

// CostView breaks a schedule cost into its weighted parts.
type CostView struct {
	Conflict      float64 `json:"conflict"`
	ECTSDeviation float64 `json:"ectsDeviation"`
	Frequency     float64 `json:"frequency"`
	Instructor    float64 `json:"instructor"`
	Total         float64 `json:"total"`
}

// ScheduleView is one ranked schedule.
type ScheduleView struct {
	Rank      int            `json:"rank"`
	Key       string         `json:"key"`
	ECTS      float64        `json:"ects"`
	Severity  int            `json:"severity"`
	Feasible  bool           `json:"feasible"`
	Cost      CostView       `json:"cost"`
	Sections  []SectionView  `json:"sections"`
	Conflicts []ConflictView `json:"conflicts"`
}

// PlanStatsView reports the search effort.
type PlanStatsView struct {
	Strategies       []string `json:"strategies"`
	Candidates       int      `json:"candidates"`
	Nodes            int      `json:"nodes"`
	Terminals        int      `json:"terminals"`
	AnnealIterations int      `json:"annealIterations"`
	AnnealAccepted   int      `json:"annealAccepted"`
	Repaired         int      `json:"repaired"`
	Exhaustive       bool     `json:"exhaustive"`
	ElapsedMs        int64    `json:"elapsedMs"`
}

// PlanResponse returns ranked schedules for a request.
type PlanResponse struct {
	ProposalID string         `json:"proposalId"`
	Schedules  []ScheduleView `json:"schedules"`
	Truncated  bool           `json:"truncated"`
	Cancelled  bool           `json:"cancelled"`
	Stats      PlanStatsView  `json:"stats"`
	Cached     bool           `json:"cached"`
}

// Proposal lifecycle states.
const (
	ProposalPending = "PENDING"
	ProposalRunning = "RUNNING"
	ProposalDone    = "DONE"
	ProposalFailed  = "FAILED"
)

// ProposalResponse reports an asynchronous run.
type ProposalResponse struct {
	ProposalID  string        `json:"proposalId"`
	Status      string        `json:"status"`
	RequestedAt time.Time     `json:"requestedAt"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`
	Result      *PlanResponse `json:"result,omitempty"`
	ErrorCode   string        `json:"errorCode,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// SavePlanRequest persists a finished proposal as a plan run.
type SavePlanRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Label      string `json:"label" validate:"required,max=120"`
	Publish    bool   `json:"publish"`
}

// PlanRunQuery filters plan run listings.
type PlanRunQuery struct {
	Label    string `form:"label" json:"label"`
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Page     int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ExportQuery selects the file format and schedule rank of an export.
type ExportQuery struct {
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
	Rank   int    `form:"rank" json:"rank" validate:"omitempty,min=1,max=20"`
}

// ExportResponse points at a rendered timetable.
type ExportResponse struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}
