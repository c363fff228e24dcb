package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 48*time.Hour, cfg.Escalation.SLAWindow)
	assert.Equal(t, 10*time.Minute, cfg.Escalation.SweepInterval)
	assert.True(t, cfg.Escalation.SweepEnabled)
	assert.Equal(t, 0.6, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 100, cfg.Dedup.CandidateLimit)
	assert.Equal(t, 2*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Evidence.MaxFileSizeBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ESCALATION_SLA_WINDOW", "24h")
	t.Setenv("DEDUP_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ESCALATION_CHAIN_HOSTEL", "Warden, Principal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.Escalation.SLAWindow)
	assert.Equal(t, 0.8, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, map[string][]string{"HOSTEL": {"Warden", "Principal"}}, cfg.Escalation.ChainOverrides)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("garbage", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
