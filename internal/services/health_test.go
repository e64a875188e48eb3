package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func healthy(context.Context) error   { return nil }
func unhealthy(context.Context) error { return errors.New("connection refused") }

func TestHealthService_CheckHealth(t *testing.T) {
	tests := []struct {
		name        string
		checks      []HealthCheck
		status      string
		critical    []string
		nonCritical []string
	}{
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "postgresql", Critical: true, Check: healthy},
				{Name: "redis", Check: healthy},
			},
			status: "healthy",
		},
		{
			name: "optional dependency down",
			checks: []HealthCheck{
				{Name: "postgresql", Critical: true, Check: healthy},
				{Name: "neo4j", Check: unhealthy},
				{Name: "kafka", Check: unhealthy},
			},
			status:      "degraded",
			nonCritical: []string{"kafka", "neo4j"},
		},
		{
			name: "database down",
			checks: []HealthCheck{
				{Name: "postgresql", Critical: true, Check: unhealthy},
				{Name: "redis", Check: healthy},
			},
			status:   "unhealthy",
			critical: []string{"postgresql"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService(tt.checks, prometheus.NewRegistry(), testLogger())
			status := hs.CheckHealth(context.Background())

			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.critical, status.Critical)
			assert.Equal(t, tt.nonCritical, status.NonCritical)
			assert.Len(t, status.Services, len(tt.checks))
			for _, c := range tt.checks {
				want := 1.0
				if c.Check(context.Background()) != nil {
					want = 0
				}
				assert.Equal(t, want, testutil.ToFloat64(hs.healthCheckStatus.WithLabelValues(c.Name)))
			}
		})
	}
}

func TestHealthService_Details(t *testing.T) {
	hs := NewHealthService([]HealthCheck{
		{Name: "postgres", Critical: true, Check: healthy},
		{Name: "catalog_events", Details: func() map[string]interface{} {
			return map[string]interface{}{"consumer_lag": int64(12)}
		}},
		{Name: "idle", Details: func() map[string]interface{} { return map[string]interface{}{} }},
	}, prometheus.NewRegistry(), testLogger())

	status := hs.CheckHealth(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["catalog_events"])
	assert.Equal(t, map[string]map[string]interface{}{
		"catalog_events": {"consumer_lag": int64(12)},
	}, status.Details)
}
