package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/medspa-availability/internal/availability"
	"github.com/wolfman30/medspa-availability/internal/catalog"
	"github.com/wolfman30/medspa-availability/internal/clinic"
	"github.com/wolfman30/medspa-availability/internal/interval"
	"github.com/wolfman30/medspa-availability/internal/tenancy"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

var jst = time.FixedZone("JST", 9*60*60)

type stubVacancy struct{}

func (stubVacancy) GetSlots(_ context.Context, _ string, menu catalog.Menu, from, _ time.Time, _ int) ([]availability.Slot, error) {
	return []availability.Slot{availability.NewSlot(from.Add(10*time.Hour), menu.DurationMinutes, true)}, nil
}

type stubHistory struct{}

func (stubHistory) GetHistory(context.Context, string, string, time.Time) ([]availability.HistoryRecord, error) {
	return nil, nil
}

type memoryConfigStore struct {
	configs map[string]*clinic.Config
}

func (s *memoryConfigStore) Get(_ context.Context, clinicID string) (*clinic.Config, error) {
	if cfg, ok := s.configs[clinicID]; ok {
		return cfg, nil
	}
	return clinic.DefaultConfig(clinicID), nil
}

func (s *memoryConfigStore) Set(_ context.Context, cfg *clinic.Config) error {
	s.configs[cfg.ClinicID] = cfg
	return nil
}

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()

	logger := logging.Default()
	snap := catalog.NewSnapshot("clinic-1", []catalog.Menu{
		{ID: "m-a", Name: "Botox", DurationMinutes: 30},
		{ID: "m-b", Name: "Filler", DurationMinutes: 60},
	}, []interval.Cell{{From: "m-a", To: "m-b", Raw: "2週間"}}, time.Now())
	source := catalog.StaticSource{Snap: snap}

	resolver, err := availability.NewResolver(availability.Config{
		Snapshots: source,
		Vacancy:   stubVacancy{},
		History:   stubHistory{},
		Location:  jst,
		Now:       func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, jst) },
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	cfg := &Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(resolver, logger),
		CatalogHandler:      catalog.NewHandler(source, 365, interval.LocaleEN, logger),
		ClinicHandler:       clinic.NewHandler(&memoryConfigStore{configs: map[string]*clinic.Config{}}, logger),
		AdminToken:          "secret",
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		HealthChecks: checks,
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" || resp["postgres"] != "ok" {
		t.Errorf("unexpected health response: %v", resp)
	}
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterRequiresClinicHeader(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/availability", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without clinic header, got %d", rr.Code)
	}
}

func TestRouterAvailabilityEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	body := `{"patient_id":"p-1","menu_name":"Botox","from":"2024-06-10","to":"2024-06-10"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/availability", strings.NewReader(body))
	req.Header.Set(tenancy.ClinicHeader, "clinic-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res availability.SingleResult
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Slots) != 1 || !res.Slots[0].Available {
		t.Fatalf("expected one available slot, got %+v", res.Slots)
	}
}

func TestRouterIntervalLookup(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/interval-matrix/lookup?from=Filler&to=Botox", nil)
	req.Header.Set(tenancy.ClinicHeader, "clinic-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp catalog.LookupResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Days != 14 {
		t.Fatalf("expected reverse lookup of 14 days, got %d", resp.Days)
	}
}

func TestRouterClinicConfigWriteNeedsAdminToken(t *testing.T) {
	router := newTestRouter(t, nil)

	put := func(token string) int {
		req := httptest.NewRequest(http.MethodPut, "/v1/clinic/config", strings.NewReader(`{"name":"Ginza"}`))
		req.Header.Set(tenancy.ClinicHeader, "clinic-1")
		if token != "" {
			req.Header.Set(adminTokenHeader, token)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := put(""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := put("wrong"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}
	if code := put("secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with admin token, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/clinic/config", nil)
	req.Header.Set(tenancy.ClinicHeader, "clinic-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected config read without token, got %d", rr.Code)
	}
}

func TestRouterCatalogRefreshNeedsAdminToken(t *testing.T) {
	router := newTestRouter(t, nil)

	refresh := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/interval-matrix/refresh", nil)
		req.Header.Set(tenancy.ClinicHeader, "clinic-1")
		if token != "" {
			req.Header.Set(adminTokenHeader, token)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := refresh(""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := refresh("secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with admin token, got %d", code)
	}
}

func TestRequireAdminTokenDisabledWhenEmpty(t *testing.T) {
	called := false
	h := requireAdminToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/", nil))
	if !called {
		t.Fatal("expected passthrough when no token configured")
	}
}
