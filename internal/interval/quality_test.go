package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityReport(t *testing.T) {
	m := NewMatrix([]Cell{
		{From: "m-1", To: "m-2", Raw: "2w"},
		{From: "m-2", To: "m-3", Raw: "500"},
		{From: "m-1", To: "m-3", Raw: "later"},
		{From: "m-3", To: "ghost", Raw: ""},
	})
	menus := []Keyed{
		testMenu{id: "m-1", name: "Botox"},
		testMenu{id: "m-2", name: "Filler"},
		testMenu{id: "m-3", name: "IV Drip"},
		testMenu{id: "m-4", name: "Peel"},
	}

	report := m.Quality(menus, 365)

	assert.Equal(t, 4, report.Keys)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 16-2-1, report.Empty)
	if assert.Len(t, report.Invalid, 1) {
		assert.Equal(t, "later", report.Invalid[0].Raw)
	}
	if assert.Len(t, report.Implausible, 1) {
		assert.Equal(t, 500, report.Implausible[0].Days)
	}
	assert.Equal(t, []string{"m-4/Peel"}, report.MissingFromMatrix)
	assert.Equal(t, []string{"ghost"}, report.UnknownInMatrix)
	assert.True(t, report.HasIssues())
}

func TestQualityCleanMatrix(t *testing.T) {
	m := NewMatrix([]Cell{{From: "Botox", To: "Filler", Raw: "14"}})
	report := m.Quality([]Keyed{testMenu{id: "1", name: "Botox"}, testMenu{id: "2", name: "Filler"}}, 0)
	assert.False(t, report.HasIssues())
	assert.Equal(t, 1, report.Filled)
}

func TestQualityNilMatrix(t *testing.T) {
	var m *Matrix
	report := m.Quality([]Keyed{testMenu{id: "1", name: "Botox"}}, 0)
	assert.Equal(t, []string{"1/Botox"}, report.MissingFromMatrix)
}
