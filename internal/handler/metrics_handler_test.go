package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/leadflow-api/internal/service"
)

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.SetLeadCount(12)
	handler := NewMetricsHandler(metrics, nil, nil)
	c, rec := newTestContext(http.MethodGet, "/metrics", "")

	handler.Prometheus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leads_stored 12")
}

func TestMetricsHandlerPrometheusDisabled(t *testing.T) {
	handler := NewMetricsHandler(nil, nil, nil)
	c, _ := newTestContext(http.MethodGet, "/metrics", "")

	handler.Prometheus(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
	}, nil)
	c, rec := newTestContext(http.MethodGet, "/ready", "")

	handler.Ready(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestMetricsHandlerReadyFailure(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("connection refused") },
	}, nil)
	c, rec := newTestContext(http.MethodGet, "/ready", "")

	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)
}
