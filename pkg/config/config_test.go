package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func TestPlannerDefaults(t *testing.T) {
	cfg := fromViper(newTestViper())

	assert.Equal(t, 1, cfg.Planner.MaxPairOverlap)
	assert.Equal(t, 2, cfg.Planner.MaxConflictingPairs)
	assert.Equal(t, 60, cfg.Planner.PeriodMinutes)
	assert.Equal(t, 5, cfg.Planner.TopK)
	assert.Equal(t, 200000, cfg.Planner.MaxNodes)
	assert.Equal(t, 2*time.Second, cfg.Planner.TimeLimit)
	assert.InDelta(t, 0.97, cfg.Planner.AnnealCooling, 1e-9)
	assert.Equal(t, 30*time.Minute, cfg.Planner.ProposalTTL)
	assert.Equal(t, "./exports", cfg.Exports.StorageDir)
	assert.False(t, cfg.Cache.Enabled)
}

func TestPlannerEnvOverrides(t *testing.T) {
	t.Setenv("PLANNER_MAX_PAIR_OVERLAP", "0")
	t.Setenv("PLANNER_TIME_LIMIT", "750ms")
	t.Setenv("PLANNER_PROPOSAL_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(newTestViper())

	assert.Equal(t, 0, cfg.Planner.MaxPairOverlap)
	assert.Equal(t, 750*time.Millisecond, cfg.Planner.TimeLimit)
	assert.Equal(t, 30*time.Minute, cfg.Planner.ProposalTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
