// Package validation re-checks interval and same-day rules for one
// candidate booking immediately before it is committed.
package validation

import (
	"time"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// Issue types reported in Result.Errors and Result.Warnings.
const (
	TypeTreatmentInterval = "TREATMENT_INTERVAL"
	TypeSameDayConstraint = "SAME_DAY_CONSTRAINT"
	TypeFirstVisit        = "FIRST_VISIT"
)

// Request identifies the booking being validated.
type Request struct {
	ClinicID  string          `json:"-"`
	PatientID string          `json:"patient_id"`
	Menu      catalog.MenuRef `json:"menu"`
	Datetime  time.Time       `json:"datetime"`
	PartySize int             `json:"party_size,omitempty"`
	Pair      bool            `json:"pair_booking,omitempty"`
}

// VisitHistory summarizes a patient's visits over the lookback.
type VisitHistory struct {
	IsFirstVisit           bool       `json:"is_first_visit"`
	LastVisitDate          *time.Time `json:"last_visit_date,omitempty"`
	VisitCount             int        `json:"visit_count"`
	MenuSpecificVisitCount int        `json:"menu_specific_visit_count"`
}

// Restriction explains one interval rule between a past menu and the
// candidate menu.
type Restriction struct {
	FromMenu         catalog.Menu `json:"from_menu"`
	ToMenu           catalog.Menu `json:"to_menu"`
	LastDate         time.Time    `json:"last_date"`
	RequiredInterval int          `json:"required_interval"`
	DaysElapsed      int          `json:"days_elapsed"`
	IsAvailable      bool         `json:"is_available"`
	RemainingDays    int          `json:"remaining_days"`
}

// IntervalCheck is the aggregate interval verdict. The binding fields come
// from the most restrictive violated rule.
type IntervalCheck struct {
	IsAvailable       bool          `json:"is_available"`
	LastTreatmentDate *time.Time    `json:"last_treatment_date,omitempty"`
	RequiredInterval  int           `json:"required_interval"`
	DaysElapsed       int           `json:"days_elapsed"`
	RemainingDays     int           `json:"remaining_days"`
	Binding           *Restriction  `json:"binding,omitempty"`
	Restrictions      []Restriction `json:"restrictions"`
}

// SameDayCheck lists same-menu reservations on the candidate's date.
type SameDayCheck struct {
	IsAvailable bool                         `json:"is_available"`
	Conflicts   []availability.HistoryRecord `json:"conflicts,omitempty"`
}

// Issue is one itemized error or warning.
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Result is the composed verdict. Callers block the commit when Errors is
// non-empty.
type Result struct {
	IsValid      bool          `json:"is_valid"`
	Menu         catalog.Menu  `json:"menu"`
	Datetime     time.Time     `json:"datetime"`
	Errors       []Issue       `json:"errors"`
	Warnings     []Issue       `json:"warnings"`
	VisitHistory VisitHistory  `json:"visit_history"`
	Interval     IntervalCheck `json:"interval"`
	SameDay      SameDayCheck  `json:"same_day"`
}

// ErrorTypes lists the types of the result's errors.
func (r *Result) ErrorTypes() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Type)
	}
	return out
}
