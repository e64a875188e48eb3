package app

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/handlers"
	"github.com/temcen/glowrank/internal/validation"
)

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "debug", Format: "json"}}
	logger := setupLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Logging = config.LoggingConfig{Level: "bogus", Format: "text"}
	logger = setupLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestSetupRouter(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sv, err := validation.NewSchemaValidator()
	require.NoError(t, err)

	cfg := &config.Config{
		Server:     config.ServerConfig{Mode: "test"},
		Monitoring: config.MonitoringConfig{Enabled: true, MetricsPath: "/metrics"},
	}
	a := &App{config: cfg, logger: logger, validator: sv}
	a.handlers = handlers.New(logger, nil, nil, nil, nil, cfg.Ranking)
	a.setupRouter()

	registered := make(map[string]bool)
	for _, r := range a.Router().Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, route := range []string{
		"GET /health",
		"GET /metrics",
		"GET /api/v1/recommendations/:userId",
		"GET /api/v1/recommendations/:userId/items/:itemId/score",
		"GET /api/v1/items/:itemId/similar",
		"PUT /api/v1/users/:userId/preferences",
		"POST /api/v1/catalog/events",
		"POST /api/v1/catalog/reindex",
	} {
		assert.True(t, registered[route], "missing route %s", route)
	}
}
