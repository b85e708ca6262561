package interval

import "strings"

// DefaultImplausibleDays is the threshold above which a rule is flagged.
const DefaultImplausibleDays = 365

// IssueKind labels a data-quality finding.
type IssueKind string

const (
	IssueUnparseable IssueKind = "unparseable"
	IssueImplausible IssueKind = "implausible"
	IssueDuplicate   IssueKind = "duplicate"
)

// Issue is a single data-quality finding against a cell.
type Issue struct {
	Kind IssueKind `json:"kind"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Raw  string    `json:"raw,omitempty"`
	Days int       `json:"days,omitempty"`
}

// QualityReport summarizes the state of a matrix against the menu list.
type QualityReport struct {
	Keys              int      `json:"keys"`
	Filled            int      `json:"filled"`
	Empty             int      `json:"empty"`
	Invalid           []Issue  `json:"invalid"`
	Implausible       []Issue  `json:"implausible"`
	Duplicates        []Issue  `json:"duplicates"`
	MissingFromMatrix []string `json:"missing_from_matrix"`
	UnknownInMatrix   []string `json:"unknown_in_matrix"`
}

// HasIssues reports whether anything in the report needs attention.
func (r QualityReport) HasIssues() bool {
	return len(r.Invalid) > 0 || len(r.Implausible) > 0 || len(r.Duplicates) > 0 ||
		len(r.MissingFromMatrix) > 0 || len(r.UnknownInMatrix) > 0
}

// Quality builds the diagnostic report. menus is the current menu list;
// implausibleDays <= 0 uses DefaultImplausibleDays.
func (m *Matrix) Quality(menus []Keyed, implausibleDays int) QualityReport {
	if implausibleDays <= 0 {
		implausibleDays = DefaultImplausibleDays
	}
	report := QualityReport{
		Invalid:           []Issue{},
		Implausible:       []Issue{},
		Duplicates:        []Issue{},
		MissingFromMatrix: []string{},
		UnknownInMatrix:   []string{},
	}
	if m == nil {
		for _, menu := range menus {
			report.MissingFromMatrix = append(report.MissingFromMatrix, label(menu))
		}
		return report
	}

	for _, issue := range m.issues {
		switch issue.Kind {
		case IssueUnparseable:
			report.Invalid = append(report.Invalid, issue)
		case IssueDuplicate:
			report.Duplicates = append(report.Duplicates, issue)
		}
	}
	for _, rule := range m.Rules() {
		report.Filled++
		if rule.Days > implausibleDays {
			report.Implausible = append(report.Implausible, Issue{
				Kind: IssueImplausible,
				From: rule.From,
				To:   rule.To,
				Days: rule.Days,
			})
		}
	}

	report.Keys = len(m.keys)
	report.Empty = report.Keys*report.Keys - report.Filled - len(report.Invalid)
	if report.Empty < 0 {
		report.Empty = 0
	}

	known := make(map[string]struct{})
	for _, menu := range menus {
		for _, k := range menu.MatrixKeys() {
			if k = normalizeKey(k); k != "" {
				known[k] = struct{}{}
			}
		}
		if !m.Has(menu) {
			report.MissingFromMatrix = append(report.MissingFromMatrix, label(menu))
		}
	}
	for _, k := range m.Keys() {
		if _, ok := known[k]; !ok {
			report.UnknownInMatrix = append(report.UnknownInMatrix, k)
		}
	}
	return report
}

func label(k Keyed) string {
	var parts []string
	for _, key := range k.MatrixKeys() {
		if key = normalizeKey(key); key != "" {
			parts = append(parts, key)
		}
	}
	return strings.Join(parts, "/")
}
