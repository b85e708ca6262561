// Package interval holds the treatment interval matrix: minimum day gaps
// between menus, the parser for the free-form values clinics enter for them,
// and a data-quality report over the loaded cells.
package interval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// CellStatus classifies a raw matrix value.
type CellStatus int

const (
	CellEmpty CellStatus = iota
	CellValid
	CellInvalid
)

func (s CellStatus) String() string {
	switch s {
	case CellEmpty:
		return "empty"
	case CellValid:
		return "valid"
	default:
		return "invalid"
	}
}

var cellPattern = regexp.MustCompile(`^(\d+)\s*(\S*)$`)

// unitDays maps unit suffixes to their length in days. A month is 30 days.
var unitDays = map[string]int{
	"":       1,
	"d":      1,
	"day":    1,
	"days":   1,
	"日":      1,
	"w":      7,
	"wk":     7,
	"wks":    7,
	"week":   7,
	"weeks":  7,
	"週":      7,
	"週間":     7,
	"m":      30,
	"mo":     30,
	"month":  30,
	"months": 30,
	"月":      30,
	"ヶ月":     30,
	"か月":     30,
	"カ月":     30,
	"ケ月":     30,
	"ヵ月":     30,
}

// ParseCell parses a raw matrix value into a day count. Blank input is
// CellEmpty; anything that is not a non-negative whole number with an
// optional day/week/month unit is CellInvalid.
func ParseCell(raw string) (int, CellStatus) {
	s := strings.TrimSpace(width.Fold.String(raw))
	if s == "" {
		return 0, CellEmpty
	}
	m := cellPattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return 0, CellInvalid
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, CellInvalid
	}
	mult, ok := unitDays[m[2]]
	if !ok {
		return 0, CellInvalid
	}
	return n * mult, CellValid
}

// Normalize returns the day count for raw, or false when raw is blank or
// unparseable. Callers treat false as "no rule".
func Normalize(raw string) (int, bool) {
	days, status := ParseCell(raw)
	if status != CellValid {
		return 0, false
	}
	return days, true
}

// Locale selects the language of human-readable intervals.
type Locale string

const (
	LocaleJA Locale = "ja"
	LocaleEN Locale = "en"
)

// ParseLocale maps a config value to a Locale, defaulting to English.
func ParseLocale(s string) Locale {
	if strings.EqualFold(strings.TrimSpace(s), string(LocaleJA)) {
		return LocaleJA
	}
	return LocaleEN
}

// Format renders days for display in Japanese, e.g. 28 → "4週間".
func Format(days int) string {
	return FormatLocale(days, LocaleJA)
}

// FormatLocale renders days for display. Months win over weeks when both
// divide evenly. Display only; never compare on the result.
func FormatLocale(days int, loc Locale) string {
	n, unit := splitDays(days)
	if loc == LocaleJA {
		switch unit {
		case "":
			return "なし"
		case "month":
			return fmt.Sprintf("%dヶ月", n)
		case "week":
			return fmt.Sprintf("%d週間", n)
		default:
			return fmt.Sprintf("%d日", n)
		}
	}
	if unit == "" {
		return "no interval"
	}
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func splitDays(days int) (int, string) {
	switch {
	case days <= 0:
		return 0, ""
	case days%30 == 0:
		return days / 30, "month"
	case days%7 == 0:
		return days / 7, "week"
	default:
		return days, "day"
	}
}
