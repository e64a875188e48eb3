package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/database"
)

func TestNew_InvalidRankingConfig(t *testing.T) {
	cfg := &config.Config{Ranking: config.RankingConfig{DecayReference: "not a time"}}

	svc, err := New(cfg, testLogger(), &database.Database{}, nil)
	assert.Nil(t, svc)
	assert.ErrorContains(t, err, "invalid ranking configuration")
}

func TestServices_CloseWithoutEventBus(t *testing.T) {
	assert.NoError(t, (&Services{}).Close())
}
