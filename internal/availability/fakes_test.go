package availability

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/interval"
)

var jst = time.FixedZone("JST", 9*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.June, day, hour, minute, 0, 0, jst)
}

var (
	menuA  = catalog.Menu{ID: "m-a", Name: "Botox", Category: "injectable", DurationMinutes: 30}
	menuB  = catalog.Menu{ID: "m-b", Name: "Filler", Category: "injectable", DurationMinutes: 60}
	menuIV = catalog.Menu{ID: "m-iv", Name: "Vitamin IV drip", Category: "wellness", DurationMinutes: 45}
)

func testSnapshot(cells ...interval.Cell) *catalog.Snapshot {
	return catalog.NewSnapshot("clinic-1", []catalog.Menu{menuA, menuB, menuIV}, cells, at(1, 0, 0))
}

type fakeVacancy struct {
	mu     sync.Mutex
	slots  map[string][]Slot
	err    error
	calls  int
	lastGr int
}

func (f *fakeVacancy) GetSlots(_ context.Context, _ string, menu catalog.Menu, _, _ time.Time, granularity int) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastGr = granularity
	if f.err != nil {
		return nil, f.err
	}
	return f.slots[menu.ID], nil
}

type fakeHistory struct {
	records map[string][]HistoryRecord
	err     error
	block   bool
}

func (f *fakeHistory) GetHistory(ctx context.Context, _, patientID string, _ time.Time) ([]HistoryRecord, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records[patientID], nil
}

type fakeResources struct {
	mu    sync.Mutex
	rooms func(at time.Time) []Room
	pairs func(at time.Time) []RoomPair
	staff func(at time.Time) []Staff
	err   error
	calls int
}

func (f *fakeResources) AvailableRooms(_ context.Context, _ string, at time.Time, _ int, _ Capability) ([]Room, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.rooms == nil {
		return nil, nil
	}
	return f.rooms(at), nil
}

func (f *fakeResources) AdjacentRoomPairs(_ context.Context, _ string, at time.Time, _ int) ([]RoomPair, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.pairs == nil {
		return nil, nil
	}
	return f.pairs(at), nil
}

func (f *fakeResources) AvailableStaff(_ context.Context, _ string, at time.Time, _ int) ([]Staff, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.staff == nil {
		return nil, nil
	}
	return f.staff(at), nil
}

func (f *fakeResources) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func slotsAt(duration int, times ...time.Time) []Slot {
	out := make([]Slot, len(times))
	for i, t := range times {
		out[i] = NewSlot(t, duration, true)
	}
	return out
}

func slotTimes(slots []Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.DateTime
	}
	return out
}

func newTestResolver(snap *catalog.Snapshot, vac *fakeVacancy, hist *fakeHistory, res ResourceProvider, now time.Time) *Resolver {
	r, err := NewResolver(Config{
		Snapshots: catalog.StaticSource{Snap: snap},
		Vacancy:   vac,
		History:   hist,
		Resources: res,
		Location:  jst,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		panic(err)
	}
	return r
}

func singleReq(patient string, menu catalog.Menu) SingleRequest {
	return SingleRequest{
		ClinicID:  "clinic-1",
		PatientID: patient,
		Menu:      catalog.MenuRef{ID: menu.ID},
		Range:     DateRange{From: at(1, 0, 0), To: at(30, 0, 0)},
	}
}

type fakeSettings struct {
	settings ClinicSettings
	err      error
}

func (f fakeSettings) Settings(context.Context, string) (ClinicSettings, error) {
	return f.settings, f.err
}
