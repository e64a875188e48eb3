package services

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const healthCheckTimeout = 5 * time.Second

// HealthCheck checks one dependency. Check may be nil for dependencies
// that only report Details.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
	Details  func() map[string]interface{}
}

type HealthService struct {
	checks []HealthCheck
	logger *logrus.Logger

	healthCheckStatus *prometheus.GaugeVec
	lastHealthCheck   *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
	Latency     string            `json:"latency"`

	Details map[string]map[string]interface{} `json:"details,omitempty"`
}

func NewHealthService(checks []HealthCheck, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	hs := &HealthService{
		checks: checks,
		logger: logger,
		healthCheckStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),
		lastHealthCheck: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_timestamp",
			Help: "Timestamp of last health check",
		}, []string{"service"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{hs.healthCheckStatus, hs.lastHealthCheck} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					logger.WithError(err).Warn("Failed to register health metric")
				}
			}
		}
	}
	return hs
}

// CheckHealth runs every check. Any failing critical dependency makes the
// service unhealthy; failing non-critical ones make it degraded.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start.UTC(),
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, c := range s.checks {
		if c.Details != nil {
			if details := c.Details(); len(details) > 0 {
				if status.Details == nil {
					status.Details = make(map[string]map[string]interface{})
				}
				status.Details[c.Name] = details
			}
		}

		var err error
		if c.Check != nil {
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err = c.Check(checkCtx)
			cancel()
		}

		if err == nil {
			status.Services[c.Name] = "healthy"
			s.updateHealthMetrics(c.Name, true)
			continue
		}

		status.Services[c.Name] = "unhealthy"
		s.updateHealthMetrics(c.Name, false)
		if c.Critical {
			allCriticalHealthy = false
			status.Critical = append(status.Critical, c.Name)
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", c.Name)
		} else {
			status.NonCritical = append(status.NonCritical, c.Name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", c.Name)
		}
	}
	sort.Strings(status.Critical)
	sort.Strings(status.NonCritical)

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	status.Latency = time.Since(start).String()
	return status
}

func (s *HealthService) updateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
