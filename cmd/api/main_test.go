package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/medspa-availability/internal/config"
	"github.com/wolfman30/medspa-availability/internal/events"
	"github.com/wolfman30/medspa-availability/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveCommit("committed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "medspa_availability_commits_total") {
		t.Fatalf("expected commit counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestConnectRedisTLS(t *testing.T) {
	client := connectRedis(&appconfig.Config{RedisAddr: "localhost:6379", RedisTLS: true})
	defer client.Close()
	if client.Options().TLSConfig == nil {
		t.Fatalf("expected TLS config when REDIS_TLS is set")
	}
}

func TestSetupEventDeliveryWithoutQueue(t *testing.T) {
	logger := logging.New("error")
	d, err := setupEventDelivery(context.Background(), &appconfig.Config{}, stubDB{}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatalf("expected deliverer")
	}
}

func TestSetupEventDeliverySQSPath(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:             "ap-northeast-1",
		AWSAccessKeyID:        "test",
		AWSSecretAccessKey:    "test",
		AWSEndpointOverride:   "http://localhost:4566",
		BookingEventsQueueURL: "http://localhost:4566/000000000000/booking-events",
	}
	d, err := setupEventDelivery(context.Background(), cfg, stubDB{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil {
		t.Fatalf("expected deliverer")
	}
}

type stubDB struct{ events.DB }
