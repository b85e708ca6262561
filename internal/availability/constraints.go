package availability

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/medspa-availability/internal/catalog"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonInterval = "interval"
	ReasonSameDay  = "same_day"
	ReasonNoRoom   = "no_room"
)

// EligibleHistory keeps the records that participate in constraint checks:
// completed records on or after since, and scheduled records from the start
// of now's calendar day in loc. A visit earlier today still counts for the
// same-day rule. Cancelled and no-show records never participate. The input
// is not modified; the result is sorted by time.
func EligibleHistory(records []HistoryRecord, since, now time.Time, loc *time.Location) []HistoryRecord {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	out := make([]HistoryRecord, 0, len(records))
	for _, r := range records {
		switch ParseStatus(string(r.Status)) {
		case StatusCompleted:
			if !r.DateTime.Before(since) {
				out = append(out, r)
			}
		case StatusScheduled:
			if !r.DateTime.Before(today) {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out
}

// DaysBetween is floor((a - b) / 24h). Negative when a is before b.
func DaysBetween(a, b time.Time) int {
	return int(math.Floor(a.Sub(b).Hours() / 24))
}

// SameCalendarDay compares dates in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// SameMenu reports whether two menus are the same offering. IDs decide when
// both sides have one; otherwise names are compared case-insensitively.
func SameMenu(a, b catalog.Menu) bool {
	aid, bid := strings.TrimSpace(a.ID), strings.TrimSpace(b.ID)
	if aid != "" && bid != "" {
		return aid == bid
	}
	an, bn := strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)
	return an != "" && strings.EqualFold(an, bn)
}

// ResolveRecordMenu maps a history record onto the catalog. Records for
// menus no longer in the catalog keep their stored identifiers so matrix
// rules keyed by those identifiers still apply.
func ResolveRecordMenu(snap *catalog.Snapshot, r HistoryRecord) catalog.Menu {
	if snap != nil {
		if m, err := snap.Menus.Resolve(r.MenuRef()); err == nil {
			return m
		}
	}
	return catalog.Menu{ID: r.MenuID, Name: r.MenuName}
}

// Constraints evaluates interval and same-day rules for one patient against
// a fixed snapshot and history. It is safe for concurrent reads.
type Constraints struct {
	snap    *catalog.Snapshot
	loc     *time.Location
	records []HistoryRecord
	menus   []catalog.Menu
}

// NewConstraints binds already-filtered history to a snapshot.
func NewConstraints(snap *catalog.Snapshot, loc *time.Location, eligible []HistoryRecord) *Constraints {
	if loc == nil {
		loc = time.UTC
	}
	c := &Constraints{
		snap:    snap,
		loc:     loc,
		records: append([]HistoryRecord(nil), eligible...),
		menus:   make([]catalog.Menu, len(eligible)),
	}
	for i, r := range c.records {
		c.menus[i] = ResolveRecordMenu(snap, r)
	}
	return c
}

// IntervalBlock describes the first history record that blocks a slot.
type IntervalBlock struct {
	Record       HistoryRecord
	RequiredDays int
	DaysDiff     int
}

// IntervalBlocker returns the first record whose interval rule against menu
// is not met at the given time. The rule is symmetric in time: a later
// booking blocks an earlier candidate the same way a past treatment does.
func (c *Constraints) IntervalBlocker(menu catalog.Menu, at time.Time) (IntervalBlock, bool) {
	if c.snap == nil {
		return IntervalBlock{}, false
	}
	for i, r := range c.records {
		required := c.snap.Matrix.Lookup(c.menus[i], menu)
		if required <= 0 {
			continue
		}
		diff := DaysBetween(at, r.DateTime)
		if abs(diff) < required {
			return IntervalBlock{Record: r, RequiredDays: required, DaysDiff: diff}, true
		}
	}
	return IntervalBlock{}, false
}

// SameDayConflicts lists records of the same menu on the same calendar date
// as at, in the clinic location.
func (c *Constraints) SameDayConflicts(menu catalog.Menu, at time.Time) []HistoryRecord {
	var out []HistoryRecord
	for i, r := range c.records {
		if SameMenu(c.menus[i], menu) && SameCalendarDay(r.DateTime, at, c.loc) {
			out = append(out, r)
		}
	}
	return out
}

// Check returns the first rejection reason for a slot start, or "".
func (c *Constraints) Check(menu catalog.Menu, at time.Time) string {
	if _, blocked := c.IntervalBlocker(menu, at); blocked {
		return ReasonInterval
	}
	if len(c.SameDayConflicts(menu, at)) > 0 {
		return ReasonSameDay
	}
	return ""
}

// Records returns the bound history with each record's resolved menu.
func (c *Constraints) Records() ([]HistoryRecord, []catalog.Menu) {
	return append([]HistoryRecord(nil), c.records...), append([]catalog.Menu(nil), c.menus...)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
