package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/hotelbooker-backend/api/controllers"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestOpsRouterServesProbesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hotelbooker_ops_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	handler := NewOpsRouter(testConfig(), nil, reg, map[string]controllers.Pinger{"database": stubPinger{}})

	for path, want := range map[string]int{
		"/health/live":    http.StatusOK,
		"/health/ready":   http.StatusOK,
		"/metrics":        http.StatusOK,
		"/api/v1/session": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
		if path == "/metrics" {
			assert.Contains(t, rec.Body.String(), "hotelbooker_ops_test_total 1")
		}
	}
}

func TestOpsRouterReadinessFailsOnOutage(t *testing.T) {
	handler := NewOpsRouter(testConfig(), nil, prometheus.NewRegistry(), map[string]controllers.Pinger{"pubsub": downPinger{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeOpsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeOps(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, nil)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeOps did not return after cancel")
	}
}

func TestServeOpsReportsListenError(t *testing.T) {
	err := ServeOps(context.Background(), "127.0.0.1:-1", http.NotFoundHandler(), time.Second, nil)
	assert.Error(t, err)
}
