package validation

import (
	"fmt"
	"time"

	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/interval"
)

func intervalMessage(loc interval.Locale, tz *time.Location, rs Restriction) string {
	last := rs.LastDate.In(tz).Format("2006-01-02")
	if loc == interval.LocaleEN {
		return fmt.Sprintf("%s requires %s between it and %s (last on %s); %d more day(s) needed.",
			rs.ToMenu.Label(), interval.FormatLocale(rs.RequiredInterval, loc), rs.FromMenu.Label(), last, rs.RemainingDays)
	}
	return fmt.Sprintf("%sは%s（%s）から%s空ける必要があります。あと%d日お待ちください。",
		rs.ToMenu.Label(), rs.FromMenu.Label(), last, interval.Format(rs.RequiredInterval), rs.RemainingDays)
}

func sameDayMessage(loc interval.Locale, tz *time.Location, menu catalog.Menu, candidate time.Time) string {
	day := candidate.In(tz).Format("2006-01-02")
	if loc == interval.LocaleEN {
		return fmt.Sprintf("%s is already booked on %s.", menu.Label(), day)
	}
	return fmt.Sprintf("%sにはすでに%sのご予約があります。", day, menu.Label())
}

func firstVisitMessage(loc interval.Locale) string {
	if loc == interval.LocaleEN {
		return "This is the patient's first visit."
	}
	return "初回のご来院です。"
}
