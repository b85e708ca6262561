package interval

import (
	"sort"
	"strings"
)

// Keyed is anything addressable in the matrix. Keys are tried in order, so
// a menu returns its ID before its display name.
type Keyed interface {
	MatrixKeys() []string
}

// Key is a single raw matrix key.
type Key string

// MatrixKeys implements Keyed.
func (k Key) MatrixKeys() []string { return []string{string(k)} }

// Cell is one raw entry as administered: a directed pair and its text value.
type Cell struct {
	From string `json:"from"`
	To   string `json:"to"`
	Raw  string `json:"raw"`
}

// Rule is a parsed directed constraint with a positive day count.
type Rule struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

// Matrix is an immutable snapshot of interval rules. Storage is directional;
// Lookup reads both directions.
type Matrix struct {
	rules  map[string]map[string]int
	keys   map[string]struct{}
	issues []Issue
}

// NewMatrix parses cells into a snapshot. Malformed cells never fail the
// build; they become "no rule" and are kept as issues for Quality.
func NewMatrix(cells []Cell) *Matrix {
	m := &Matrix{
		rules: make(map[string]map[string]int),
		keys:  make(map[string]struct{}),
	}
	for _, c := range cells {
		from, to := normalizeKey(c.From), normalizeKey(c.To)
		if from == "" || to == "" {
			continue
		}
		m.keys[from] = struct{}{}
		m.keys[to] = struct{}{}

		days, status := ParseCell(c.Raw)
		switch status {
		case CellEmpty:
			continue
		case CellInvalid:
			m.issues = append(m.issues, Issue{Kind: IssueUnparseable, From: from, To: to, Raw: c.Raw})
			continue
		}
		if days == 0 {
			continue
		}
		row := m.rules[from]
		if row == nil {
			row = make(map[string]int)
			m.rules[from] = row
		}
		if prev, ok := row[to]; ok && prev != days {
			m.issues = append(m.issues, Issue{Kind: IssueDuplicate, From: from, To: to, Raw: c.Raw, Days: days})
			if prev > days {
				continue
			}
		}
		row[to] = days
	}
	return m
}

// Lookup returns the minimum days between from and to: the directed rule
// if present, else the reverse rule, else 0. Every caller that enforces
// intervals goes through here.
func (m *Matrix) Lookup(from, to Keyed) int {
	if m == nil {
		return 0
	}
	fk, tk := from.MatrixKeys(), to.MatrixKeys()
	if days, ok := m.directed(fk, tk); ok {
		return days
	}
	if days, ok := m.directed(tk, fk); ok {
		return days
	}
	return 0
}

// LookupKeys is Lookup for bare keys.
func (m *Matrix) LookupKeys(from, to string) int {
	return m.Lookup(Key(from), Key(to))
}

func (m *Matrix) directed(fromKeys, toKeys []string) (int, bool) {
	for _, f := range fromKeys {
		row := m.rules[normalizeKey(f)]
		if row == nil {
			continue
		}
		for _, t := range toKeys {
			if days, ok := row[normalizeKey(t)]; ok {
				return days, true
			}
		}
	}
	return 0, false
}

// Rules lists the stored directed rules in key order.
func (m *Matrix) Rules() []Rule {
	if m == nil {
		return nil
	}
	var out []Rule
	for from, row := range m.rules {
		for to, days := range row {
			out = append(out, Rule{From: from, To: to, Days: days})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From == out[j].From {
			return out[i].To < out[j].To
		}
		return out[i].From < out[j].From
	})
	return out
}

// Keys lists every key that appeared in any cell, sorted.
func (m *Matrix) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.keys))
	for k := range m.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any of k's keys appears in the matrix.
func (m *Matrix) Has(k Keyed) bool {
	if m == nil {
		return false
	}
	for _, key := range k.MatrixKeys() {
		if _, ok := m.keys[normalizeKey(key)]; ok {
			return true
		}
	}
	return false
}

func normalizeKey(k string) string {
	return strings.TrimSpace(k)
}
