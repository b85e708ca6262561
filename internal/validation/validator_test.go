package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/interval"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, jst)
}

var (
	botox  = catalog.Menu{ID: "m-a", Name: "Botox", DurationMinutes: 30}
	filler = catalog.Menu{ID: "m-b", Name: "Filler", DurationMinutes: 60}
	peel   = catalog.Menu{ID: "m-c", Name: "Chemical Peel", DurationMinutes: 45}
)

type stubHistory struct {
	records []availability.HistoryRecord
	err     error
	since   time.Time
}

func (s *stubHistory) GetHistory(_ context.Context, _, _ string, since time.Time) ([]availability.HistoryRecord, error) {
	s.since = since
	return s.records, s.err
}

type failingSettings struct{ err error }

func (f failingSettings) Settings(context.Context, string) (availability.ClinicSettings, error) {
	return availability.ClinicSettings{}, f.err
}

func newValidator(t *testing.T, hist *stubHistory, locale interval.Locale, cells ...interval.Cell) *Validator {
	t.Helper()
	snap := catalog.NewSnapshot("clinic-1", []catalog.Menu{botox, filler, peel}, cells, at(time.January, 1, 0))
	v, err := NewValidator(Config{
		Snapshots: catalog.StaticSource{Snap: snap},
		History:   hist,
		Location:  jst,
		Locale:    locale,
		Now:       func() time.Time { return at(time.June, 20, 10) },
	})
	require.NoError(t, err)
	return v
}

func request(menu catalog.Menu, dt time.Time) Request {
	return Request{ClinicID: "clinic-1", PatientID: "p-1", Menu: catalog.MenuRef{ID: menu.ID}, Datetime: dt}
}

func TestValidateReservation_MostRestrictiveIntervalBinds(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{ID: "r-1", MenuID: "m-a", DateTime: at(time.June, 14, 10), Status: availability.StatusCompleted},
		{ID: "r-2", MenuID: "m-b", DateTime: at(time.May, 25, 10), Status: availability.StatusCompleted},
	}}
	v := newValidator(t, hist, interval.LocaleEN,
		interval.Cell{From: "m-a", To: "m-c", Raw: "2w"},
		interval.Cell{From: "m-c", To: "Filler", Raw: "30"},
	)

	res, err := v.ValidateReservation(context.Background(), request(peel, at(time.June, 21, 10)))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, TypeTreatmentInterval, res.Errors[0].Type)
	assert.Contains(t, res.Errors[0].Message, "7 more day(s)")

	require.Len(t, res.Interval.Restrictions, 2)
	for _, rs := range res.Interval.Restrictions {
		assert.False(t, rs.IsAvailable)
	}
	require.NotNil(t, res.Interval.Binding)
	assert.Equal(t, "m-a", res.Interval.Binding.FromMenu.ID)
	assert.Equal(t, 14, res.Interval.RequiredInterval)
	assert.Equal(t, 7, res.Interval.DaysElapsed)
	assert.Equal(t, 7, res.Interval.RemainingDays)
	require.NotNil(t, res.Interval.LastTreatmentDate)
	assert.Equal(t, at(time.June, 14, 10), *res.Interval.LastTreatmentDate)
	assert.Empty(t, res.Warnings)
}

func TestValidateTreatmentInterval_UsesClosestRecordPerMenu(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{MenuID: "m-a", DateTime: at(time.March, 1, 10), Status: availability.StatusCompleted},
		{MenuID: "m-a", DateTime: at(time.June, 10, 10), Status: availability.StatusCompleted},
		{MenuID: "m-b", DateTime: at(time.June, 19, 10), Status: availability.StatusCompleted},
	}}
	v := newValidator(t, hist, interval.LocaleEN, interval.Cell{From: "m-a", To: "m-a", Raw: "30"})

	check, err := v.ValidateTreatmentInterval(context.Background(), "clinic-1", "p-1", catalog.MenuRef{Name: "botox"}, at(time.June, 25, 10))
	require.NoError(t, err)
	assert.False(t, check.IsAvailable)
	require.Len(t, check.Restrictions, 1)
	assert.Equal(t, 15, check.Restrictions[0].DaysElapsed)
	assert.Equal(t, 15, check.RemainingDays)
}

func TestValidateTreatmentInterval_SatisfiedRulesStillListed(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{MenuID: "m-a", DateTime: at(time.April, 1, 10), Status: availability.StatusCompleted},
	}}
	v := newValidator(t, hist, interval.LocaleEN, interval.Cell{From: "m-a", To: "m-b", Raw: "1m"})

	check, err := v.ValidateTreatmentInterval(context.Background(), "clinic-1", "p-1", catalog.MenuRef{ID: "m-b"}, time.Time{})
	require.NoError(t, err)
	assert.True(t, check.IsAvailable)
	require.Len(t, check.Restrictions, 1)
	assert.True(t, check.Restrictions[0].IsAvailable)
	assert.Zero(t, check.Restrictions[0].RemainingDays)
	assert.Nil(t, check.Binding)
}

func TestValidateReservation_FutureBookingBlocksEarlierCandidate(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{MenuID: "m-a", DateTime: at(time.July, 1, 10), Status: availability.StatusScheduled},
	}}
	v := newValidator(t, hist, interval.LocaleJA, interval.Cell{From: "m-b", To: "m-a", Raw: "14日"})

	res, err := v.ValidateReservation(context.Background(), request(filler, at(time.June, 25, 10)))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, -6, res.Interval.DaysElapsed)
	assert.Equal(t, 8, res.Interval.RemainingDays)
	assert.Contains(t, res.Errors[0].Message, "2週間")
}

func TestValidateReservation_SameDay(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{ID: "r-9", MenuID: "m-c", DateTime: at(time.June, 21, 9), Status: availability.StatusScheduled},
		{ID: "r-10", MenuID: "m-c", DateTime: at(time.June, 22, 9), Status: availability.StatusCancelled},
	}}
	v := newValidator(t, hist, interval.LocaleEN)

	res, err := v.ValidateReservation(context.Background(), request(peel, at(time.June, 21, 15)))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{TypeSameDayConstraint}, res.ErrorTypes())
	require.Len(t, res.SameDay.Conflicts, 1)
	assert.Equal(t, "r-9", res.SameDay.Conflicts[0].ID)
	assert.Equal(t, "Chemical Peel is already booked on 2024-06-21.", res.Errors[0].Message)

	res, err = v.ValidateReservation(context.Background(), request(peel, at(time.June, 22, 15)))
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	res, err = v.ValidateReservation(context.Background(), request(botox, at(time.June, 21, 15)))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateReservation_SameDayKeepsEarlierVisitToday(t *testing.T) {
	// now is June 20 10:00; the morning visit has already started
	hist := &stubHistory{records: []availability.HistoryRecord{
		{ID: "r-1", MenuID: "m-c", DateTime: at(time.June, 20, 9), Status: availability.StatusScheduled},
	}}
	v := newValidator(t, hist, interval.LocaleEN)

	res, err := v.ValidateReservation(context.Background(), request(peel, at(time.June, 20, 15)))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{TypeSameDayConstraint}, res.ErrorTypes())
	require.Len(t, res.SameDay.Conflicts, 1)
	assert.Equal(t, "r-1", res.SameDay.Conflicts[0].ID)
}

func TestValidateReservation_UsesClinicSettings(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	hist := &stubHistory{records: []availability.HistoryRecord{
		{ID: "r-1", MenuID: "m-c", DateTime: time.Date(2024, time.June, 20, 9, 0, 0, 0, ny), Status: availability.StatusScheduled},
	}}
	v := newValidator(t, hist, interval.LocaleJA)
	v.settings = availability.StaticSettings{Location: ny, Locale: "en"}

	loc, err := v.Location(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Equal(t, ny, loc)

	// 20:00 in New York is already June 21 in the service zone
	candidate := time.Date(2024, time.June, 20, 20, 0, 0, 0, ny)
	res, err := v.ValidateReservation(context.Background(), request(peel, candidate))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{TypeSameDayConstraint}, res.ErrorTypes())
	assert.Equal(t, "Chemical Peel is already booked on 2024-06-20.", res.Errors[0].Message)

	// without a clinic locale the service locale applies
	v.settings = availability.StaticSettings{Location: ny}
	res, err = v.ValidateReservation(context.Background(), request(peel, candidate))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-20にはすでにChemical Peelのご予約があります。", res.Errors[0].Message)
}

func TestValidateReservation_ClinicSettingsUnavailable(t *testing.T) {
	hist := &stubHistory{}
	v := newValidator(t, hist, interval.LocaleEN)
	v.settings = failingSettings{err: errors.New("redis down")}

	_, err := v.ValidateReservation(context.Background(), request(botox, at(time.June, 21, 15)))
	require.ErrorIs(t, err, availability.ErrSourceUnavailable)
	var srcErr *availability.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "clinic", srcErr.Source)
	assert.True(t, hist.since.IsZero(), "history is not loaded")

	_, err = v.Location(context.Background(), "clinic-1")
	assert.ErrorIs(t, err, availability.ErrSourceUnavailable)
}

func TestValidateReservation_FirstVisitIsOnlyAWarning(t *testing.T) {
	v := newValidator(t, &stubHistory{}, interval.LocaleJA)

	res, err := v.ValidateReservation(context.Background(), request(botox, at(time.June, 21, 15)))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, TypeFirstVisit, res.Warnings[0].Type)
	assert.True(t, res.VisitHistory.IsFirstVisit)
}

func TestCheckVisitHistory(t *testing.T) {
	hist := &stubHistory{records: []availability.HistoryRecord{
		{MenuID: "m-a", DateTime: at(time.January, 10, 10), Status: availability.StatusCompleted},
		{MenuID: "m-a", DateTime: at(time.May, 10, 10), Status: availability.StatusCompleted},
		{MenuID: "m-b", DateTime: at(time.June, 1, 10), Status: availability.StatusCompleted},
		{MenuID: "m-b", DateTime: at(time.June, 5, 10), Status: availability.StatusNoShow},
		{MenuID: "m-a", DateTime: at(time.June, 6, 10), Status: availability.StatusCancelled},
		{MenuID: "m-a", DateTime: at(time.July, 1, 10), Status: availability.StatusScheduled},
	}}
	v := newValidator(t, hist, interval.LocaleEN)

	vh, err := v.CheckVisitHistory(context.Background(), "clinic-1", "p-1", catalog.MenuRef{ID: "m-a"})
	require.NoError(t, err)
	assert.False(t, vh.IsFirstVisit)
	assert.Equal(t, 3, vh.VisitCount)
	assert.Equal(t, 2, vh.MenuSpecificVisitCount)
	require.NotNil(t, vh.LastVisitDate)
	assert.Equal(t, at(time.June, 1, 10), *vh.LastVisitDate)
	assert.Equal(t, time.Date(2022, time.June, 20, 10, 0, 0, 0, jst), hist.since)
}

func TestValidator_Errors(t *testing.T) {
	boom := errors.New("timeout talking to history")
	v := newValidator(t, &stubHistory{err: boom}, interval.LocaleEN)

	_, err := v.ValidateReservation(context.Background(), request(botox, at(time.June, 21, 15)))
	assert.ErrorIs(t, err, availability.ErrSourceUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = v.ValidateReservation(context.Background(), Request{ClinicID: "clinic-1", PatientID: "p-1", Menu: catalog.MenuRef{ID: "nope"}, Datetime: at(time.June, 21, 15)})
	assert.ErrorIs(t, err, availability.ErrMenuNotFound)

	_, err = v.ValidateReservation(context.Background(), Request{PatientID: "p-1", Menu: catalog.MenuRef{ID: "m-a"}})
	assert.ErrorIs(t, err, availability.ErrInvalidRequest)

	_, err = v.ValidateSameDayConstraint(context.Background(), "clinic-1", "p-1", catalog.MenuRef{ID: "m-a"}, time.Time{})
	assert.ErrorIs(t, err, availability.ErrInvalidRequest)
}
