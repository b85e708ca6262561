package validation

import (
	"sort"
	"time"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/interval"
)

// evaluation holds one loaded snapshot and history. All checks are pure
// functions over it.
type evaluation struct {
	snap    *catalog.Snapshot
	menu    catalog.Menu
	records []availability.HistoryRecord
	now     time.Time
	since   time.Time
	loc     *time.Location
	locale  interval.Locale
}

func (e *evaluation) constraints() *availability.Constraints {
	return availability.NewConstraints(e.snap, e.loc, availability.EligibleHistory(e.records, e.since, e.now, e.loc))
}

// visitHistory counts past, non-cancelled, non-no-show records.
func (e *evaluation) visitHistory() VisitHistory {
	var vh VisitHistory
	for _, r := range e.records {
		switch availability.ParseStatus(string(r.Status)) {
		case availability.StatusCompleted, availability.StatusScheduled:
		default:
			continue
		}
		if r.DateTime.After(e.now) || r.DateTime.Before(e.since) {
			continue
		}
		vh.VisitCount++
		if availability.SameMenu(availability.ResolveRecordMenu(e.snap, r), e.menu) {
			vh.MenuSpecificVisitCount++
		}
		if vh.LastVisitDate == nil || r.DateTime.After(*vh.LastVisitDate) {
			last := r.DateTime
			vh.LastVisitDate = &last
		}
	}
	vh.IsFirstVisit = vh.VisitCount == 0
	return vh
}

// interval builds one restriction per past menu that has a rule against the
// target, using that menu's record closest to the candidate. The binding
// restriction is the violated one with the most remaining days, ties going
// to the larger required interval.
func (e *evaluation) interval(candidate time.Time) IntervalCheck {
	records, menus := e.constraints().Records()

	type best struct {
		restriction Restriction
		distance    int
	}
	byMenu := map[string]*best{}
	var order []string
	for i, r := range records {
		required := e.snap.Matrix.Lookup(menus[i], e.menu)
		if required <= 0 {
			continue
		}
		elapsed := availability.DaysBetween(candidate, r.DateTime)
		distance := absInt(elapsed)
		key := menuKey(menus[i])
		cur, seen := byMenu[key]
		if seen && cur.distance <= distance {
			continue
		}
		rs := Restriction{
			FromMenu:         menus[i],
			ToMenu:           e.menu,
			LastDate:         r.DateTime,
			RequiredInterval: required,
			DaysElapsed:      elapsed,
			IsAvailable:      distance >= required,
		}
		if !rs.IsAvailable {
			rs.RemainingDays = required - distance
		}
		if !seen {
			order = append(order, key)
		}
		byMenu[key] = &best{restriction: rs, distance: distance}
	}

	check := IntervalCheck{IsAvailable: true, Restrictions: make([]Restriction, 0, len(order))}
	for _, key := range order {
		check.Restrictions = append(check.Restrictions, byMenu[key].restriction)
	}
	sort.SliceStable(check.Restrictions, func(i, j int) bool {
		return check.Restrictions[i].LastDate.Before(check.Restrictions[j].LastDate)
	})

	for i := range check.Restrictions {
		rs := &check.Restrictions[i]
		if rs.IsAvailable {
			continue
		}
		check.IsAvailable = false
		if check.Binding == nil ||
			rs.RemainingDays > check.Binding.RemainingDays ||
			(rs.RemainingDays == check.Binding.RemainingDays && rs.RequiredInterval > check.Binding.RequiredInterval) {
			binding := *rs
			check.Binding = &binding
		}
	}
	if check.Binding != nil {
		last := check.Binding.LastDate
		check.LastTreatmentDate = &last
		check.RequiredInterval = check.Binding.RequiredInterval
		check.DaysElapsed = check.Binding.DaysElapsed
		check.RemainingDays = check.Binding.RemainingDays
	}
	return check
}

func (e *evaluation) sameDay(candidate time.Time) SameDayCheck {
	conflicts := e.constraints().SameDayConflicts(e.menu, candidate)
	return SameDayCheck{IsAvailable: len(conflicts) == 0, Conflicts: conflicts}
}

func menuKey(m catalog.Menu) string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return "name:" + m.Name
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
